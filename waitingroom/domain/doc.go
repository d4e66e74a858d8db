// Package domain define os tipos e contratos da sala de espera da flash sale:
// produtos, entradas de fila, pedidos, estado da sale e taxonomia de erros.
//
// Não depende de net/http nem de implementações concretas (memória, Redis).
// As regras de admissão ficam em application; as implementações em infra.
package domain
