package finance

import (
	"sort"

	"worklenz/finance/internal/models"
)

// rollup holds the quantities summed from leaves up to an ancestor.
type rollup struct {
	estimatedSeconds int64
	loggedSeconds    int64
	estimatedCost    float64
	actualCost       float64
	fixedCost        float64
	estimatedManDays float64
	actualManDays    float64
}

func (r *rollup) add(o rollup) {
	r.estimatedSeconds += o.estimatedSeconds
	r.loggedSeconds += o.loggedSeconds
	r.estimatedCost += o.estimatedCost
	r.actualCost += o.actualCost
	r.fixedCost += o.fixedCost
	r.estimatedManDays += o.estimatedManDays
	r.actualManDays += o.actualManDays
}

// taskTree is an arena of the non-archived tasks of one project with
// child lists indexed by parent id.
type taskTree struct {
	tasks    map[string]*models.Task
	children map[string][]string
	order    []string
	// logged is seconds per task per team member.
	logged map[string]map[string]int64
	sums   map[string]rollup
}

func newTaskTree(tasks []models.Task, logs []models.WorkLog) *taskTree {
	t := &taskTree{
		tasks:    make(map[string]*models.Task, len(tasks)),
		children: make(map[string][]string),
		logged:   make(map[string]map[string]int64),
		sums:     make(map[string]rollup),
	}
	for i := range tasks {
		task := &tasks[i]
		if task.Archived {
			continue
		}
		t.tasks[task.ID] = task
		t.order = append(t.order, task.ID)
	}
	for _, id := range t.order {
		task := t.tasks[id]
		if task.ParentTaskID == "" {
			continue
		}
		// A child of an archived or missing parent is unreachable.
		if _, ok := t.tasks[task.ParentTaskID]; ok {
			t.children[task.ParentTaskID] = append(t.children[task.ParentTaskID], id)
		}
	}
	for _, l := range logs {
		if _, ok := t.tasks[l.TaskID]; !ok {
			continue
		}
		byMember := t.logged[l.TaskID]
		if byMember == nil {
			byMember = make(map[string]int64)
			t.logged[l.TaskID] = byMember
		}
		byMember[l.TeamMemberID] += l.TimeSpent
	}
	return t
}

// topLevel returns the tasks in scope: root tasks of the project, or the
// direct children of parentID.
func (t *taskTree) topLevel(parentID string) []*models.Task {
	var out []*models.Task
	if parentID != "" {
		for _, id := range t.children[parentID] {
			out = append(out, t.tasks[id])
		}
		return out
	}
	for _, id := range t.order {
		if task := t.tasks[id]; task.ParentTaskID == "" {
			out = append(out, task)
		}
	}
	return out
}

func (t *taskTree) isLeaf(id string) bool {
	return len(t.children[id]) == 0
}

// leaves returns the leaf descendants of id, or id itself when it is a leaf.
func (t *taskTree) leaves(id string) []*models.Task {
	var out []*models.Task
	seen := map[string]bool{id: true}
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		kids := t.children[cur]
		if len(kids) == 0 {
			out = append(out, t.tasks[cur])
			continue
		}
		for i := len(kids) - 1; i >= 0; i-- {
			if !seen[kids[i]] {
				seen[kids[i]] = true
				stack = append(stack, kids[i])
			}
		}
	}
	return out
}

// fold computes the rollup of rootID with an iterative post-order walk.
// Leaves are priced by leaf; interior nodes sum their children.
// Results are memoized across calls.
func (t *taskTree) fold(rootID string, leaf func(*models.Task) rollup) rollup {
	type frame struct {
		id       string
		expanded bool
	}
	onPath := map[string]bool{}
	stack := []frame{{id: rootID}}

	for len(stack) > 0 {
		i := len(stack) - 1
		id := stack[i].id
		if _, done := t.sums[id]; done {
			stack = stack[:i]
			continue
		}

		kids := t.children[id]
		if len(kids) == 0 {
			t.sums[id] = leaf(t.tasks[id])
			stack = stack[:i]
			continue
		}

		if !stack[i].expanded {
			stack[i].expanded = true
			onPath[id] = true
			for _, k := range kids {
				if _, done := t.sums[k]; !done && !onPath[k] {
					stack = append(stack, frame{id: k})
				}
			}
			continue
		}

		var sum rollup
		for _, k := range kids {
			sum.add(t.sums[k])
		}
		t.sums[id] = sum
		delete(onPath, id)
		stack = stack[:i]
	}
	return t.sums[rootID]
}

// loggers returns the members that logged time on a task in a stable order.
func (t *taskTree) loggers(taskID string) []string {
	byMember := t.logged[taskID]
	ids := make([]string, 0, len(byMember))
	for id := range byMember {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
