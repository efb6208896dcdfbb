/*
Package storage provides the generic in-memory entity store used by every
virtplane repository.

A Store holds the entities of one kind. It assigns identity and timestamps,
enforces uniqueness keys, serves reads through secondary indexes and returns
deep copies so callers never share memory with stored state. State is
volatile: nothing is persisted and a restart starts empty.

# Architecture

	┌──────────────────────── STORE[T] ─────────────────────────┐
	│                                                             │
	│   Create / Update / Patch / Delete        Get / Lookup / List│
	│              │                                   │          │
	│              ▼                                   ▼          │
	│   ┌────────────────────┐            ┌────────────────────┐ │
	│   │ writer section     │            │ readers            │ │
	│   │  - uniqueness check│            │  - deep copy out   │ │
	│   │  - index claims    │            │  - sort by created │ │
	│   │  - entity replace  │            └────────────────────┘ │
	│   └─────────┬──────────┘                                   │
	│             ▼                                              │
	│   ┌────────────────────┐   ┌──────────────────────────┐   │
	│   │ entities  id → T   │   │ indexes  key → id (unique)│   │
	│   └────────────────────┘   └──────────────────────────┘   │
	│             │                                              │
	│             ▼ after commit                                 │
	│   entity gauge · debug log · event (<kind>.<action>)       │
	└─────────────────────────────────────────────────────────────┘

Two implementations honour the same contract:

  - MemoryStore: one sync.RWMutex guards the entity map and all index maps.
  - ConcurrentStore: sharded concurrent maps with lock-free reads. Writers
    serialize on a writer mutex and claim index keys with SetIfAbsent. Reads
    through an index re-check the entity's current key.

# Keys and Indexes

A Kind lists its unique indexes. Each Index derives a Key{Scope, Value} from
an entity; an empty Scope is the global scope. The first index is the kind's
uniqueness key, for example (project, name) for most kinds or the hostname
for nodes. A create or rename that would reuse a key owned by another entity
fails with ErrAlreadyExists and leaves the store untouched.

# Timestamps

Create stamps CreatedAt and UpdatedAt from the store clock. Update and Patch
keep CreatedAt and move UpdatedAt strictly forward: when the clock has not
advanced past the previous value, UpdatedAt becomes the previous value plus
one nanosecond.

# Filtering and Pagination

Criteria compiles against per-kind Accessors into a conjunctive Predicate:
scope equality, type equality, phase membership, label subset match and
case-insensitive name substring. Paginate slices an ordered result by offset
and limit and reports the total before slicing. SortNewestFirst and PageAfter
implement cursor pagination where the cursor is the ID of the last entity of
the previous page.

# Usage

	kind := storage.Kind[*types.Node]{
		Name: "node",
		Indexes: []storage.Index[*types.Node]{
			{Name: "hostname", Key: func(n *types.Node) storage.Key {
				return storage.GlobalKey(n.Hostname)
			}},
		},
	}
	nodes := storage.NewMemoryStore(kind, storage.WithPublisher(broker))

	node, err := nodes.Create(&types.Node{Hostname: "hv-01"})
	if errors.Is(err, storage.ErrAlreadyExists) {
		// hostname taken
	}

	ready := nodes.List(storage.Compile(storage.Criteria{
		Phases: []string{string(types.NodePhaseReady)},
	}, nodeAccessors))

# Errors

ErrNotFound and ErrAlreadyExists are wrapped with the kind and key; match
them with errors.Is. The store never retries and never logs failures; any
other error (for example from the ID generator) is returned unchanged in
meaning.
*/
package storage
