// Command towerctl queries and releases a control tower over gRPC.
//
//	towerctl status
//	towerctl resume
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	flag "github.com/spf13/pflag"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/LeonardoBeccarini/aquarius/internal/services/tower"
)

func main() {
	addr := flag.StringP("addr", "a", "localhost:50051", "tower gRPC address")
	timeout := flag.DurationP("timeout", "t", 5*time.Second, "call timeout")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: towerctl [flags] status|resume\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	client, closeConn, err := tower.Dial(*addr)
	if err != nil {
		log.Fatalf("towerctl: %v", err)
	}
	defer func() { _ = closeConn() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch cmd := flag.Arg(0); cmd {
	case "status":
		st, err := client.Status(ctx)
		if err != nil {
			log.Fatalf("towerctl: status: %v", err)
		}
		out, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(st)
		if err != nil {
			log.Fatalf("towerctl: %v", err)
		}
		fmt.Println(string(out))
	case "resume":
		if err := client.Resume(ctx); err != nil {
			log.Fatalf("towerctl: resume: %v", err)
		}
		fmt.Println("cycle resumed")
	default:
		flag.Usage()
		os.Exit(2)
	}
}
