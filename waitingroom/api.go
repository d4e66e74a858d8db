package waitingroom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"flashsale-gateway/waitingroom/domain"

	"go.uber.org/zap"
)

type Queue interface {
	Enter(ctx context.Context, id domain.ProductID, sessionID string) (domain.Ticket, error)
	Status(ctx context.Context, id domain.ProductID, token domain.Token) domain.QueueStatus
}

type Purchaser interface {
	Purchase(ctx context.Context, req domain.PurchaseRequest) (domain.Order, error)
}

type Sale interface {
	Start(ctx context.Context) (domain.SaleState, error)
	End(ctx context.Context) (domain.SaleState, error)
	IsActive(ctx context.Context) bool
}

type Products interface {
	List(ctx context.Context) ([]domain.ProductView, error)
	Get(ctx context.Context, id domain.ProductID) (domain.ProductView, error)
}

const (
	SessionHeader  = "X-Session-Id"
	DefaultSession = "demo-session"

	maxBodyBytes = 1 << 16
)

type Options struct {
	// Prefix das rotas da API, padrão "/api".
	Prefix string

	Queue     Queue
	Purchases Purchaser
	Sale      Sale
	Products  Products

	// Metrics é servido em /metrics quando não nil.
	Metrics http.Handler
	Logger  *zap.Logger

	// Throttle envolve as rotas de fila e compra; PurchaseGuard só a compra.
	Throttle      func(http.Handler) http.Handler
	PurchaseGuard func(http.Handler) http.Handler

	AllowedOrigins []string
}

type api struct {
	queue     Queue
	purchases Purchaser
	sale      Sale
	products  Products
	log       *zap.Logger
}

// NewHandler monta o roteador com a cadeia de middlewares:
// request id -> recover -> log -> CORS -> rotas.
func NewHandler(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	prefix := "/" + strings.Trim(opts.Prefix, "/")
	if opts.Prefix == "" {
		prefix = "/api"
	}
	if prefix == "/" {
		prefix = ""
	}
	throttle := opts.Throttle
	if throttle == nil {
		throttle = passthrough
	}
	guard := opts.PurchaseGuard
	if guard == nil {
		guard = passthrough
	}

	a := &api{
		queue:     opts.Queue,
		purchases: opts.Purchases,
		sale:      opts.Sale,
		products:  opts.Products,
		log:       opts.Logger,
	}

	mux := http.NewServeMux()
	mux.Handle("POST "+prefix+"/queue/enter", throttle(http.HandlerFunc(a.enter)))
	mux.Handle("GET "+prefix+"/queue/status", throttle(http.HandlerFunc(a.status)))
	mux.Handle("POST "+prefix+"/purchase", throttle(guard(http.HandlerFunc(a.purchase))))
	mux.HandleFunc("POST "+prefix+"/sale/start", a.startSale)
	mux.HandleFunc("POST "+prefix+"/sale/end", a.endSale)
	mux.HandleFunc("GET "+prefix+"/sale/status", a.saleStatus)
	mux.HandleFunc("GET "+prefix+"/products", a.listProducts)
	mux.HandleFunc("GET "+prefix+"/products/{id}", a.getProduct)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, map[string]string{"status": "ok"}, "")
	})
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	var h http.Handler = mux
	h = CORS(opts.AllowedOrigins)(h)
	h = Logging(opts.Logger)(h)
	h = Recover(opts.Logger)(h)
	h = RequestID()(h)
	return h
}

func passthrough(next http.Handler) http.Handler { return next }

func sessionID(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(SessionHeader)); v != "" {
		return v
	}
	return DefaultSession
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("malformed JSON body: %w", domain.ErrInvalidRequest)
	}
	return nil
}

func parseProductID(raw string) (domain.ProductID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("productId must be a positive integer: %w", domain.ErrInvalidRequest)
	}
	return domain.ProductID(id), nil
}

func (a *api) enter(w http.ResponseWriter, r *http.Request) {
	var req enterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, a.log, err)
		return
	}
	if req.ProductID <= 0 {
		writeError(w, r, a.log, fmt.Errorf("productId is required: %w", domain.ErrInvalidRequest))
		return
	}

	tk, err := a.queue.Enter(r.Context(), domain.ProductID(req.ProductID), sessionID(r))
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	msg := "You are in the queue."
	if tk.Position > 0 {
		msg = "You are in the queue. Current position: " + formatInt(int(tk.Position)) + "."
	}
	writeOK(w, enterResponse{
		Token:                string(tk.Token),
		Position:             tk.Position,
		EstimatedWaitSeconds: waitSeconds(tk.EstimatedWait),
		Message:              msg,
	}, "")
}

func (a *api) status(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id, err := parseProductID(q.Get("productId"))
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	token := strings.TrimSpace(q.Get("token"))
	if token == "" {
		writeError(w, r, a.log, fmt.Errorf("token is required: %w", domain.ErrInvalidRequest))
		return
	}

	st := a.queue.Status(r.Context(), id, domain.Token(token))
	writeOK(w, toStatusResponse(st), "")
}

func (a *api) purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, a.log, err)
		return
	}
	switch {
	case req.ProductID <= 0:
		writeError(w, r, a.log, fmt.Errorf("productId is required: %w", domain.ErrInvalidRequest))
		return
	case req.Quantity == nil:
		writeError(w, r, a.log, fmt.Errorf("quantity is required: %w", domain.ErrInvalidRequest))
		return
	case strings.TrimSpace(req.Token) == "":
		writeError(w, r, a.log, fmt.Errorf("token is required: %w", domain.ErrInvalidRequest))
		return
	}

	order, err := a.purchases.Purchase(r.Context(), domain.PurchaseRequest{
		ProductID: domain.ProductID(req.ProductID),
		Token:     domain.Token(strings.TrimSpace(req.Token)),
		Quantity:  *req.Quantity,
		SessionID: sessionID(r),
	})
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	writeOK(w, purchaseResponse{
		OrderID:     order.ID,
		ProductName: order.ProductName,
		Quantity:    order.Quantity,
		TotalPrice:  order.TotalPrice,
		Message:     "Purchase completed!",
	}, "")
}

func (a *api) startSale(w http.ResponseWriter, r *http.Request) {
	st, err := a.sale.Start(r.Context())
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	writeOK(w, saleResponse{SaleActive: st.Active}, "The sale has started!")
}

func (a *api) endSale(w http.ResponseWriter, r *http.Request) {
	st, err := a.sale.End(r.Context())
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	writeOK(w, saleResponse{SaleActive: st.Active}, "The sale has ended.")
}

func (a *api) saleStatus(w http.ResponseWriter, r *http.Request) {
	writeOK(w, saleResponse{SaleActive: a.sale.IsActive(r.Context())}, "")
}

func (a *api) listProducts(w http.ResponseWriter, r *http.Request) {
	views, err := a.products.List(r.Context())
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	out := make([]productResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toProductResponse(v))
	}
	writeOK(w, out, "")
}

func (a *api) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseProductID(r.PathValue("id"))
	if err != nil {
		writeError(w, r, a.log, err)
		return
	}
	v, err := a.products.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeFail(w, http.StatusNotFound, domain.Code(err), "Product not found.")
			return
		}
		writeError(w, r, a.log, err)
		return
	}
	writeOK(w, toProductResponse(v), "")
}
