package domain

import "context"

// SlotPool limita quantas compras rodam ao mesmo tempo no processo.
//
// Acquire bloqueia até obter uma vaga ou até o ctx encerrar. O release retornado
// deve ser chamado exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
