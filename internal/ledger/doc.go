// Package ledger persists insurance records and decides when a shared
// component may be removed from the host-wide store.
//
// Every sandbox instance that places a component into the shared store
// insures it first: the component is added to the record of the instance's
// install transaction and the instance is registered as a holder of that
// record. A record without holders is retired, and its components are removed
// from the store once no other record with holders still lists them.
//
// The ledger is a bbolt database shared by every instance on the host. Each
// operation opens the database, which takes an exclusive file lock, runs a
// single transaction and closes it again, so operations from independent
// processes are serialized.
//
// A mock store under `mock` is used for unit testing failure handling.
package ledger

//go:generate go tool go.uber.org/mock/mockgen -source=store.go -package=ledger_mock -destination=mock/store_mock.go
