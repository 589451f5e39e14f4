package interrupt

import (
	"log"
	"os"
	"os/signal"
	"sync"
)

// Install wires SIGINT to the token for the duration of a run. The first
// interrupt requests a graceful stop (a one-time notice is logged); the
// second calls exit immediately. The returned restore func detaches the
// handler and must be deferred by the caller so it runs on every exit
// path.
func Install(token *Token, logger *log.Logger, exit func(code int)) (restore func()) {
	if logger == nil {
		logger = log.Default()
	}
	if exit == nil {
		exit = os.Exit
	}

	ch := make(chan os.Signal, 2)
	signal.Notify(ch, os.Interrupt)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ch:
				if token.Request() {
					logger.Printf("interrupt received, finishing in-flight work (press Ctrl+C again to force exit)")
					continue
				}
				token.Force()
				logger.Printf("forced exit requested, terminating immediately")
				exit(1)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(done)
		})
	}
}
