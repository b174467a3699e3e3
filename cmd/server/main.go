/*
main.go - Application entry point

PURPOSE:

	Starts the leave lifecycle engine. All work happens in cobra commands:

	  serve   HTTP API plus the periodic auto-approval sweep
	  sweep   One auto-approval pass, then exit (for cron)
	  seed    Reset the database to a demo scenario and print tokens

CONFIGURATION:

	Defaults, then --config (or ./config.yaml), then LEAVE_* environment
	variables. See config/config.go.

EXAMPLES:

	# Run with defaults (./data/leave.db, port 8080)
	./server serve

	# In-memory database with demo data
	LEAVE_DATABASE_PATH=":memory:" ./server serve --seed conflicts

	# Cron-driven sweep
	./server sweep --config /etc/leave/config.yaml

SEE ALSO:
  - api/server.go: Router configuration
  - timeoff/service.go: Lifecycle rules
  - store/sqlite/sqlite.go: Database implementation
*/
package main

func main() {
	Execute()
}
