// Package domain define contratos e tipos de domínio do motor de admissão.
//
// Este pacote não depende de net/http nem de implementações concretas:
// Entry/Config/Decision, a porta EntryStore, os eventos de estatística e as
// funções puras de derivação de chave (ClientIP, CreateKey, KeyFor).
package domain
