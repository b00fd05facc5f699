// Upstream de teste para o gateway: responde em qualquer rota e devolve a cota
// restante que o gateway repassou no header X-RateLimit-Remaining.
package main

import (
	"fmt"
	"net/http"
	"os"

	log "github.com/sirupsen/logrus"
)

func main() {
	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	http.HandleFunc("/", echo)
	log.WithField("addr", addr).Info("upstream de teste rodando")
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.WithError(err).Fatal("erro ao subir o servidor")
	}
}

func echo(w http.ResponseWriter, r *http.Request) {
	remaining := r.Header.Get("X-RateLimit-Remaining")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<h1>%s</h1><p>Requisição recebida com sucesso! Restantes: %s</p>", r.URL.Path, remaining)
	log.WithFields(log.Fields{
		"path":      r.URL.Path,
		"user":      r.Header.Get("X-User-Id"),
		"remaining": remaining,
	}).Info("request recebido")
}
