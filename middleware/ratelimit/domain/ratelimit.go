package domain

import "time"

// Key identifica um cliente (IP, API key, etc).
type Key string

// ClientRecord é o estado de cota de um cliente.
//
// RemainingCalls fica em [0, MaxCalls-1] depois de cada chamada.
// LastSeenAt só muda na criação e no reset da janela.
type ClientRecord struct {
	RemainingCalls int
	LastSeenAt     time.Time
}

// Decision é o resultado de uma verificação. Não é armazenado.
type Decision struct {
	RemainingCalls  int
	HasReachedLimit bool
}

// UpdateFunc recebe uma cópia do registro (zero value quando found=false)
// e devolve true se a cópia alterada deve ser gravada.
type UpdateFunc func(rec *ClientRecord, found bool) (persist bool)

// RecordStore guarda um ClientRecord por Key.
//
// Update deve executar fn de forma atômica em relação a outras chamadas para a
// mesma chave; é a seção crítica do rate limit.
type RecordStore interface {
	Update(key Key, fn UpdateFunc)
}
