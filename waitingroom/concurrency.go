package waitingroom

import (
	"net/http"
	"time"

	"flashsale-gateway/waitingroom/application"
	"flashsale-gateway/waitingroom/domain"
)

type ConcurrencyOptions struct {
	// Pool com as vagas; nil desliga o limite.
	Pool           domain.SlotPool
	RejectStatus   int
	AcquireTimeout time.Duration
}

// ConcurrencyMiddleware limita compras simultâneas. Sem vaga dentro do timeout,
// responde 503 sem chegar ao handler.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Pool == nil {
		return passthrough
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	slots := application.PurchaseSlots{
		Pool:           opts.Pool,
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := slots.Acquire(r.Context())
			if !ok {
				writeFail(w, opts.RejectStatus, "BUSY", "Too many purchases in progress. Please retry.")
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
