// Package infra contém as implementações concretas dos contratos de domain.
//
// Exemplos:
//   - MemoryTokenStore: entradas de fila com TTL, por produto
//   - Store: token bucket por chave usando golang.org/x/time/rate
//   - ChanPool: semáforo para limitar compras simultâneas
//   - MemorySaleStore / RedisSaleStore: flag da sale
//   - MemoryStatsStore / RedisStatsStore / PrometheusStats: eventos da fila
//   - MemoryCatalog + ViewCache (ttlcache), SnowflakeIDs para pedidos
package infra
