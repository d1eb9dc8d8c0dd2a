// Package cli provides the interactive LifeKeeper terminal client.
//
// NewApp wires configuration, the local SQLite store, the REST client, the
// connectivity monitor and one sync hook per domain. App.Root logs the user
// in and runs a line-based REPL:
//
//	list <domain> [search]    show cached records
//	add <domain>              create a record from prompted fields
//	edit <domain> <id>        update a record, empty answers keep values
//	delete <domain> <id>      remove a record after confirmation
//	complete <domain> <id>    mark a task or habit done
//	sync                      push queued changes and refetch
//	status                    show mode and pending operations
//	backup, restore [key]     snapshot local data to S3 and back
//
// Every change is applied to the local cache first and queued. Queues are
// drained by a debounced background sync when the device is online.
package cli
