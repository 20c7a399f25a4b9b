package queue

import "github.com/stanleyndaba/clario-detection-engine/model"

// priorityRank maps JobPriority to a numeric rank where lower sorts
// first, mirroring Mindburn-Labs-helm's DeterministicScheduler
// convention ("lower = higher priority").
func priorityRank(p model.JobPriority) int {
	switch p {
	case model.PriorityJobCritical:
		return 0
	case model.PriorityJobHigh:
		return 1
	case model.PriorityJobNormal:
		return 2
	case model.PriorityJobLow:
		return 3
	default:
		return 4
	}
}

// entry wraps a DetectionJob with the monotonic sequence number that
// breaks ties when priority and created_at are both equal, preserving
// FIFO order for same-priority jobs created at the exact same instant.
type entry struct {
	job *model.DetectionJob
	seq uint64
}

// jobHeap implements container/heap.Interface. Ordering per spec.md
// §4.D: priority first (CRITICAL > HIGH > NORMAL > LOW), ties broken
// by FIFO on created_at, and a monotonic sequence number as the final
// deterministic tiebreaker — the same three-tier comparator Mindburn's
// schedulerHeap uses for its scheduled_at/priority/sort_key ladder.
type jobHeap []*entry

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	pi, pj := priorityRank(h[i].job.Priority), priorityRank(h[j].job.Priority)
	if pi != pj {
		return pi < pj
	}
	if !h[i].job.CreatedAt.Equal(h[j].job.CreatedAt) {
		return h[i].job.CreatedAt.Before(h[j].job.CreatedAt)
	}
	return h[i].seq < h[j].seq
}

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) {
	*h = append(*h, x.(*entry))
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}
