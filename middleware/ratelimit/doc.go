// Package ratelimit fornece o adapter HTTP (net/http) do motor de admissão.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: Limiter (janela fixa + bloqueio) e Registry por endpoint
//   - infra: store em shards, reaper, sinks de estatística, collector Prometheus
//   - ratelimit (este pacote): middleware HTTP + extração de chave + tradução para status/headers
//   - ginlimit / admin: adapter gin para rotas de API e rotas administrativas (chi)
//
// Fluxo no gateway:
//
//   1) Resolve o endpoint lógico (prefixo de rota, com fallback "default")
//   2) Deriva a chave do cliente (IP pela cadeia de headers, usuário, ou ambos)
//   3) Chama Limiter.Check para obter a decisão
//   4) Se bloqueado, responde 429 com X-RateLimit-Remaining/X-RateLimit-Reset
//   5) Se permitido, chama o próximo handler (ex: reverse proxy)
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o comportamento,
// como RATE_ENDPOINTS_FILE, RATE_REAP_INTERVAL e ADD_RATELIMIT_HEADERS.
//
// A store vive só em memória: sem reaper (RATE_REAP_INTERVAL=0) ela cresce
// sem limite, uma entrada por chave vista.
package ratelimit
