// Package ratelimit fornece os middlewares HTTP (net/http) de cota por cliente e
// de limite de requisições em voo.
//
// Visão geral (camadas):
//
//   - domain: ClientRecord, Decision e contratos (sem dependência de net/http)
//   - application: Limiter.Check (cota com janela que reinicia) e Inflight (acquire/timeout)
//   - infra: MemoryRecordStore, stats em memória/Redis, semáforo
//   - ratelimit (este pacote): middlewares HTTP + extração de chave + tradução para status/headers
//
// Fluxo por requisição:
//
//  1. Extrai a chave do cliente (header/XFF/RemoteAddr)
//  2. Chama Limiter.Check(chave, agora)
//  3. Se o limite foi atingido, responde 429 com Retry-After e corpo vazio
//  4. Senão, expõe X-Remaining-Calls e chama o próximo handler
package ratelimit
