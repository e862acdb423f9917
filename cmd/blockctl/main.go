// Command blockctl replays allocation scripts and workloads against blockkit allocators.
package main

func main() {
	execute()
}
