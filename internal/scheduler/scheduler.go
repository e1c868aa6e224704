package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/damoang/angple-collab/pkg/logger"
)

// TaskFunc 주기적으로 실행되는 작업
type TaskFunc func(ctx context.Context) error

// ScheduledTask 등록된 주기적 작업
type ScheduledTask struct {
	Name      string
	Interval  time.Duration
	Handler   TaskFunc
	LastRun   time.Time
	NextRun   time.Time
	RunCount  int64
	LastError error
}

// Scheduler in-process 주기 작업 스케줄러.
// 정확성에는 필요 없고 저장소 정리 용도로만 쓴다.
type Scheduler struct {
	tasks      []*ScheduledTask
	mu         sync.RWMutex
	resolution time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// NewScheduler 스케줄러 생성. resolution은 작업 확인 주기
func NewScheduler(resolution time.Duration) *Scheduler {
	if resolution <= 0 {
		resolution = 30 * time.Second
	}
	return &Scheduler{
		tasks:      make([]*ScheduledTask, 0),
		resolution: resolution,
		stop:       make(chan struct{}),
	}
}

// Register 주기적 작업 등록
func (s *Scheduler) Register(name string, interval time.Duration, handler TaskFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = append(s.tasks, &ScheduledTask{
		Name:     name,
		Interval: interval,
		Handler:  handler,
		NextRun:  time.Now().Add(interval),
	})

	logger.Info("Scheduled task registered: %s (every %s)", name, interval)
}

// Start 스케줄러 시작 (백그라운드 goroutine). ctx가 끝나면 실행 중인 작업도 취소된다
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		ticker := time.NewTicker(s.resolution)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.tick(ctx, now)
			}
		}
	}()
	logger.Info("Housekeeping scheduler started")
}

// Stop 스케줄러 중지
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
	logger.Info("Housekeeping scheduler stopped")
}

// tick 실행 대상 작업 체크 및 실행
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	s.mu.RLock()
	tasks := make([]*ScheduledTask, len(s.tasks))
	copy(tasks, s.tasks)
	s.mu.RUnlock()

	for _, task := range tasks {
		if now.Before(task.NextRun) {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		err := task.Handler(ctx)
		if err != nil {
			logger.Error("Scheduled task error [%s]: %v", task.Name, err)
		}

		s.mu.Lock()
		task.LastError = err
		task.LastRun = now
		task.NextRun = now.Add(task.Interval)
		task.RunCount++
		s.mu.Unlock()
	}
}

// GetTasks 등록된 작업 목록 조회 (모니터링용)
func (s *Scheduler) GetTasks() []ScheduledTaskInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ScheduledTaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		info := ScheduledTaskInfo{
			Name:     t.Name,
			Interval: t.Interval.String(),
			LastRun:  t.LastRun,
			NextRun:  t.NextRun,
			RunCount: t.RunCount,
		}
		if t.LastError != nil {
			errMsg := t.LastError.Error()
			info.LastError = &errMsg
		}
		result = append(result, info)
	}
	return result
}

// ScheduledTaskInfo 작업 정보 (JSON 응답용)
type ScheduledTaskInfo struct {
	Name      string    `json:"name"`
	Interval  string    `json:"interval"`
	LastRun   time.Time `json:"last_run"`
	NextRun   time.Time `json:"next_run"`
	RunCount  int64     `json:"run_count"`
	LastError *string   `json:"last_error,omitempty"`
}
