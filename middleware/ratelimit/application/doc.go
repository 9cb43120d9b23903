// Package application contém os casos de uso do rate limit e do limite de
// requisições em voo.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Limiter.Check(key, now) retorna uma Decision (cota restante + limite atingido).
package application
