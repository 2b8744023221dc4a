// Command pgqueue operates a Postgres-backed work queue: apply the
// schema, enqueue payloads, and run workers that pipe each job's payload
// to a shell command.
package main

func main() {
	Execute()
}
