package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"orderdesk/internal/config"
	"orderdesk/internal/enrich"
	"orderdesk/internal/extract"
	"orderdesk/internal/matchsvc"
	"orderdesk/internal/metrics"
	"orderdesk/internal/pipeline"
	"orderdesk/internal/server"
	"orderdesk/internal/store"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	st, err := store.Open(cfg)
	must(err)
	defer st.Close()

	var enricher pipeline.Enricher
	if llm := enrich.NewClient(cfg); llm.Enabled() {
		enricher = llm
	}
	svc := pipeline.NewService(cfg, st, extract.NewClient(cfg), matchsvc.NewClient(cfg), enricher)

	cmd := os.Args[1]
	switch cmd {
	case "serve":
		srv := server.New(svc, metrics.NewRegistry())
		fmt.Printf("listening on %s (backend=%s)\n", cfg.HTTPAddr, cfg.StorageBackend)
		must(http.ListenAndServe(cfg.HTTPAddr, srv.Handler()))
	case "ingest":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "path to a sales order document (pdf|xlsx|html|txt)")
		_ = fs.Parse(os.Args[2:])
		if *file == "" {
			must(fmt.Errorf("--file is required"))
		}
		content, err := os.ReadFile(*file)
		must(err)
		order, err := svc.IngestDocument(context.Background(), filepath.Base(*file), content)
		must(err)
		fmt.Printf("created sales order %s with %d line items\n", order.ID, len(order.LineItems))
	case "list":
		orders, err := st.List()
		must(err)
		for _, order := range orders {
			fmt.Printf("%s  %-10s %3d items  %s\n", order.ID, order.Status, len(order.LineItems), order.FileName)
		}
	case "show":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "sales order id")
		_ = fs.Parse(os.Args[2:])
		order, err := st.Get(*id)
		must(err)
		if order == nil {
			must(fmt.Errorf("sales order not found: %s", *id))
		}
		blob, err := json.MarshalIndent(order, "", "  ")
		must(err)
		fmt.Println(string(blob))
	case "match":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "sales order id")
		limit := fs.Int("limit", 0, "max candidates per line item")
		_ = fs.Parse(os.Args[2:])
		order, err := svc.MatchOrder(context.Background(), *id, *limit)
		must(err)
		matched := 0
		for _, item := range order.LineItems {
			if item.MatchedItem != nil {
				matched++
			}
		}
		fmt.Printf("matched %d/%d line items\n", matched, len(order.LineItems))
	case "match-item":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		query := fs.String("query", "", "item description to match")
		limit := fs.Int("limit", 0, "max candidates")
		_ = fs.Parse(os.Args[2:])
		candidates, err := svc.MatchItem(context.Background(), *query, *limit)
		must(err)
		for _, c := range candidates {
			fmt.Printf("%6.2f  %s\n", c.Score, c.Match)
		}
	case "export:csv":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "sales order id")
		out := fs.String("out", "", "output path (default stdout)")
		_ = fs.Parse(os.Args[2:])
		csv, err := svc.OrderCSV(*id)
		must(err)
		if *out == "" {
			fmt.Print(csv)
		} else {
			must(os.WriteFile(*out, []byte(csv), 0o644))
			fmt.Printf("wrote %s\n", *out)
		}
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "sales order id")
		out := fs.String("out", "", "output path")
		_ = fs.Parse(os.Args[2:])
		path := *out
		if path == "" {
			path = filepath.Join(cfg.OutputDir, "sales_order_"+*id+".xlsx")
		}
		must(svc.OrderXLSX(*id, path))
		fmt.Printf("wrote %s\n", path)
	case "delete":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "sales order id")
		_ = fs.Parse(os.Args[2:])
		removed, err := st.Delete(*id)
		must(err)
		if removed {
			fmt.Printf("deleted %s\n", *id)
		} else {
			fmt.Printf("no sales order with id %s\n", *id)
		}
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`usage: orderdesk <command> [flags]

commands:
  serve                      start the HTTP API
  ingest --file <path>       extract a document and create a sales order
  list                       list all sales orders
  show --id <id>             print one sales order as JSON
  match --id <id>            match all line items against the catalog
  match-item --query <text>  ad-hoc single item lookup
  export:csv --id <id>       export an order as CSV
  export:xlsx --id <id>      export an order as XLSX
  delete --id <id>           delete an order`)
}

func must(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
