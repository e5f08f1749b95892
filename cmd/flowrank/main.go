package main

import (
	_ "FlowRank/internal/report" // registers the report writers
	_ "FlowRank/internal/source" // registers the record sources
)

func main() {
	execute()
}
