/*
Package ports defines the driven ports (interfaces) for the topograph engine.

These interfaces decouple the mutation service from concrete stores, allowing the
same transactional skeleton to run against memory, Redis or Badger.

# Key Interfaces

  - UnitOfWork / Tx: Scoped transactions with Commit and Abort.
  - Repository: Element-level reads and writes on a channel plus audit appends.
  - Store: A UnitOfWork that can also load, list and audit channels outside a transaction.
  - DistributedLocker: Provides distributed locking for serializing writers across replicas.
*/
package ports
