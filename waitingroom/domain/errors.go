package domain

import "errors"

// Erros de negócio. Todos são recuperáveis pelo cliente: reiniciar a fila em
// Expired/NotFound/OutOfStock, continuar o polling em NotAdmittedYet.
//
// Qualquer outro erro é tratado como falha interna e aborta só o request afetado.
var (
	ErrNotFound        = errors.New("not found")
	ErrExpired         = errors.New("queue token expired")
	ErrQueueExpired    = errors.New("queue token expired or unknown, please enter the queue again")
	ErrNotAdmittedYet  = errors.New("not admitted yet, keep polling")
	ErrAlreadyConsumed = errors.New("queue token was already used")
	ErrOutOfStock      = errors.New("out of stock")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrQueueFull       = errors.New("queue is full, please try again later")
)

var callerErrors = []error{
	ErrNotFound,
	ErrExpired,
	ErrQueueExpired,
	ErrNotAdmittedYet,
	ErrAlreadyConsumed,
	ErrOutOfStock,
	ErrInvalidRequest,
	ErrQueueFull,
}

// IsCallerError separa erros de negócio de falhas de infraestrutura.
func IsCallerError(err error) bool {
	for _, target := range callerErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Code devolve o código estável de um erro, usado em errorCode e nas estatísticas.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrQueueExpired), errors.Is(err, ErrExpired):
		return "QUEUE_EXPIRED"
	case errors.Is(err, ErrNotAdmittedYet):
		return "NOT_ADMITTED_YET"
	case errors.Is(err, ErrAlreadyConsumed):
		return "ALREADY_CONSUMED"
	case errors.Is(err, ErrOutOfStock):
		return "OUT_OF_STOCK"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInvalidRequest):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrQueueFull):
		return "QUEUE_FULL"
	default:
		return "INTERNAL_ERROR"
	}
}
