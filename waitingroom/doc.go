// Package waitingroom expõe a sala de espera da flash sale via net/http.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (admissão, compra, sale, catálogo) sem net/http
//   - infra: implementações concretas (tokens em memória, token bucket, Redis, Prometheus)
//   - waitingroom (este pacote): handlers, middlewares e tradução de erros para status
//
// Fluxo de um comprador:
//
//  1. POST /queue/enter recebe token e posição
//  2. GET /queue/status é consultado até canPurchase ou expired
//  3. POST /purchase efetiva a compra com o token
//
// Todas as respostas usam o envelope {success, data, message, errorCode}.
package waitingroom
