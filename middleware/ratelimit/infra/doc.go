// Package infra contém implementações concretas dos contratos do pacote domain.
//
// Exemplos:
//   - MemoryRecordStore: mapa de ClientRecord protegido por mutex, com limpeza periódica
//   - MemoryStatsStore / RedisStatsStore: contadores de decisões
//   - ChanPool: semáforo simples para limite de requisições em voo
package infra
