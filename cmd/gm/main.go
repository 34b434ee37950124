// Command gm is the General Manager: it launches teams of agents into
// isolated git worktrees, merges their work back in least-conflicting order,
// and gates completion on a clean build and test run.
package main

func main() {
	Execute()
}
