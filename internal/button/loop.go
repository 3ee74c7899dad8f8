package button

import (
	"time"

	"go.uber.org/zap"
)

// pump feeds edges and ticks into a classifier and forwards accepted kinds
// to out until done closes. Delivery to out never blocks: a full channel
// drops the event with a warning.
func pump(c *Classifier, edges <-chan Edge, tick <-chan time.Time, done <-chan struct{}, out chan<- Kind, logger *zap.Logger) {
	emit := func(kinds []Kind) {
		for _, k := range kinds {
			logger.Debug("button event", zap.String("kind", string(k)))
			if !Accepted(k) {
				continue
			}
			select {
			case out <- k:
			default:
				logger.Warn("button event queue full, dropping", zap.String("kind", string(k)))
			}
		}
	}

	for {
		select {
		case <-done:
			return
		case e := <-edges:
			emit(c.Process(e))
		case now := <-tick:
			emit(c.Tick(now))
		}
	}
}
