// Command securearc creates, inspects, and extracts SecureArc archives.
package main

func main() {
	execute()
}
