package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Task는 스케줄러가 실행할 작업을 정의하는 인터페이스입니다
type Task interface {
	Execute(ctx context.Context) error
}

// TaskFunc는 함수를 Task로 사용하기 위한 어댑터입니다
type TaskFunc func(ctx context.Context) error

// Execute는 f(ctx)를 호출합니다
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Scheduler는 interval 경계에 맞춰 작업을 반복 실행하는 스케줄러입니다.
// 작업 실행 중에는 다음 틱을 대기하지 않으므로 같은 작업이 겹쳐 실행되지 않습니다.
type Scheduler struct {
	interval time.Duration
	task     Task
	log      *logrus.Entry
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewScheduler는 새로운 스케줄러를 생성합니다
func NewScheduler(interval time.Duration, task Task, log *logrus.Entry) *Scheduler {
	return &Scheduler{
		interval: interval,
		task:     task,
		log:      log.WithField("component", "scheduler"),
		stopCh:   make(chan struct{}),
	}
}

// nextWait는 다음 interval 경계까지 남은 시간을 계산합니다
func (s *Scheduler) nextWait() time.Duration {
	now := time.Now()
	nextRun := now.Truncate(s.interval).Add(s.interval)
	wait := nextRun.Sub(now)

	s.log.WithFields(logrus.Fields{
		"wait":     wait.Round(time.Millisecond).String(),
		"next_run": nextRun.Format("15:04:05"),
	}).Debug("다음 실행 대기")
	return wait
}

// Start는 ctx가 취소되거나 Stop이 호출될 때까지 작업을 실행합니다
func (s *Scheduler) Start(ctx context.Context) error {
	timer := time.NewTimer(s.nextWait())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.stopCh:
			return nil

		case <-timer.C:
			if err := s.task.Execute(ctx); err != nil {
				// 에러가 발생해도 다음 틱에서 계속 실행
				s.log.WithError(err).Error("작업 실행 실패")
			}
			timer.Reset(s.nextWait())
		}
	}
}

// Stop은 스케줄러를 중지합니다. 여러 번 호출해도 안전합니다.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}
