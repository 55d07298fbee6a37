package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicdesk/libs/config"
	"github.com/md-rashed-zaman/clinicdesk/libs/grpcx"
	"github.com/md-rashed-zaman/clinicdesk/libs/httpx"
	"google.golang.org/protobuf/types/known/structpb"
)

const service = "/clinicdesk.scheduling.v1.Availability/"

func main() {
	var (
		addr         = flag.String("addr", config.String("CLINIC_GRPC_ADDR", "localhost:9090"), "clinic-service grpc address")
		professional = flag.String("professional-id", config.String("PROFESSIONAL_ID", ""), "professional to query")
		date         = flag.String("date", time.Now().Format("2006-01-02"), "civil date YYYY-MM-DD in the clinic zone")
		patient      = flag.String("patient-id", config.String("PATIENT_ID", ""), "patient for a validation dry run")
		at           = flag.String("at", "", "RFC3339 instant to validate instead of listing slots")
		timeout      = flag.Duration("timeout", 5*time.Second, "call timeout")
	)
	flag.Parse()

	if strings.TrimSpace(*professional) == "" {
		fatal("PROFESSIONAL_ID is required")
	}

	conn, err := grpcx.NewClient(*addr, grpcx.ClientOptions{})
	if err != nil {
		fatal(err.Error())
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = httpx.ContextWithRequestID(ctx, "slots-probe-"+httpx.NewRequestID())

	method, in := "GetAvailableSlots", map[string]any{"professional_id": *professional, "date": *date}
	if *at != "" {
		if strings.TrimSpace(*patient) == "" {
			fatal("PATIENT_ID is required with -at")
		}
		method, in = "ValidateBooking", map[string]any{"professional_id": *professional, "patient_id": *patient, "scheduled_at": *at}
	}

	req, err := structpb.NewStruct(in)
	if err != nil {
		fatal(err.Error())
	}
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, service+method, req, out); err != nil {
		fatal(err.Error())
	}
	body, err := out.MarshalJSON()
	if err != nil {
		fatal(err.Error())
	}
	fmt.Println(string(body))
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "error:", msg)
	os.Exit(1)
}
