// Package pending holds manual-captcha tasks awaiting a human reply.
package pending

import (
	"sync"

	"github.com/hvnguyen/popmart-registrar/internal/registration"
)

// Key identifies one outstanding manual captcha: the channel the image was
// posted to, the day being processed, and the row index within that day.
type Key struct {
	ChannelID int64
	DayLabel  string
	RowIndex  int
}

// Task carries everything needed to finish a registration once the operator
// replies with the captcha text. MessageID is the transport id of the posted
// image, used to route reply-to answers back to the exact task.
type Task struct {
	Key       Key
	DayID     string
	SessionID string
	Row       registration.Row
	MessageID int
}

// Store is the process-wide map of pending manual tasks. Each task is
// consumed exactly once; tasks never answered live until process exit, there
// is no reaping.
type Store struct {
	mu    sync.Mutex
	tasks map[Key]Task
	order []Key
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{tasks: make(map[Key]Task)}
}

// Put inserts a task. A later insert at the same key replaces the earlier
// in-flight registration for that exact (channel, day, row).
func (s *Store) Put(task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.Key]; !exists {
		s.order = append(s.order, task.Key)
	}
	s.tasks[task.Key] = task
}

// PopByKey removes and returns the task at an exact key.
func (s *Store) PopByKey(key Key) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[key]
	if !ok {
		return Task{}, false
	}
	s.remove(key)
	return task, true
}

// PopByReply removes the task whose posted image matches the replied-to
// message in the channel.
func (s *Store) PopByReply(channelID int64, messageID int) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range s.order {
		if key.ChannelID != channelID {
			continue
		}
		if task := s.tasks[key]; task.MessageID == messageID {
			s.remove(key)
			return task, true
		}
	}
	return Task{}, false
}

// PopByChannel removes and returns the oldest pending task for a channel.
// Replies that carry no reply-to reference land here; with several rows
// pending in one channel the choice of task is a known limitation.
func (s *Store) PopByChannel(channelID int64) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range s.order {
		if key.ChannelID != channelID {
			continue
		}
		task := s.tasks[key]
		s.remove(key)
		return task, true
	}
	return Task{}, false
}

// Len reports the number of tasks still awaiting an answer.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// remove must be called with the mutex held.
func (s *Store) remove(key Key) {
	delete(s.tasks, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
