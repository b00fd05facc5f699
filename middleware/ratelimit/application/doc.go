// Package application contém os casos de uso do motor de admissão.
//
// Ele depende apenas dos pacotes domain/infra e não conhece net/http.
// Ex.: Limiter.Check(key) retorna uma Decision (allow/deny + remaining + reset)
// e Registry mantém um Limiter por endpoint lógico.
package application
