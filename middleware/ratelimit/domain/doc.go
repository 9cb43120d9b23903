// Package domain define os tipos e contratos do rate limit por cliente.
//
// Este pacote não depende de net/http nem de implementações concretas:
// ClientRecord e Decision são valores puros, e RecordStore/StatsStore são as
// portas que a camada infra implementa.
package domain
