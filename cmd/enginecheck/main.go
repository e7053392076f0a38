package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/park285/cheese-review/internal/analysis"
	"github.com/park285/cheese-review/internal/chess/rules"
	"github.com/park285/cheese-review/internal/chess/uci"
)

// enginecheck starts the configured engine, analyses one position and
// prints every tagged event it receives.
func main() {
	fen := flag.String("fen", rules.StartingPosition, "position to analyse")
	movetime := flag.Duration("movetime", time.Second, "search budget")
	flag.Parse()

	path := strings.TrimSpace(os.Getenv("STOCKFISH_PATH"))
	if path == "" {
		log.Fatal("STOCKFISH_PATH is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *movetime+10*time.Second)
	defer cancel()

	engine, err := uci.Start(ctx, path, uci.Options{})
	if err != nil {
		log.Fatalf("engine start error: %v", err)
	}
	defer engine.Close()
	log.Printf("engine state: %s", engine.State())

	ply, err := rules.PlyIndex(*fen)
	if err != nil {
		log.Fatalf("bad fen: %v", err)
	}
	bar := analysis.NewDebouncer(analysis.DefaultDebounce, func(v float64) {
		fmt.Printf("bar settled=%.3f\n", v)
	})
	defer bar.Stop()

	id, err := engine.RequestAnalysis(*fen, *movetime)
	if err != nil {
		log.Fatalf("request error: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Fatalf("no bestmove: %v", ctx.Err())
		case ev, ok := <-engine.Events():
			if !ok {
				log.Fatal("engine output closed")
			}
			if ev.Request != id {
				continue
			}
			switch ev.Kind {
			case uci.EventScore:
				v := analysis.Normalize(ev.Score, ply, analysis.White)
				fmt.Printf("score %s bar=%.3f\n", analysis.FormatScore(ev.Score, ply), v)
				bar.Set(v)
			case uci.EventBestMove:
				bar.Flush()
				fmt.Printf("bestmove %q\n", ev.BestMove)
				return
			}
		}
	}
}
