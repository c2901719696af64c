// Command joinql compiles object query descriptions against a metamodel and
// shows the join trees they resolve to.
//
//	joinql render --model model.yaml query.yaml
//	joinql tree --dialect eclipselink --model model.yaml query.yaml
//	joinql model --dsn file:app.db
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
