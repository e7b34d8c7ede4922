package server

import "context"

const (
	notifyWorkerCount     = 5
	notificationQueueSize = 10 * notifyWorkerCount
)

type notification struct {
	userID string
	text   string
}

// queueNotification never blocks a request handler: when the queue is full
// the notification is dropped and logged, the ledger state stays correct.
func (srv *Server) queueNotification(n notification) {
	select {
	case srv.notifications <- n:
	default:
		srv.deps.Logger.Warnf("notification queue full, dropped message for %s", n.userID)
	}
}

func (srv *Server) NotifyControl(ctx context.Context) {
	for i := 0; i < notifyWorkerCount; i++ {
		go srv.notifyWorker(ctx)
	}
}

func (srv *Server) notifyWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-srv.notifications:
			if err := srv.bot.Notify(n.userID, n.text); err != nil {
				srv.deps.Logger.Errorf("notify %s: %v", n.userID, err)
			}
		}
	}
}
