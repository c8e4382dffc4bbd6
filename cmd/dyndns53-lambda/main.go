// ABOUTME: AWS Lambda entry point for the DynDNS2 endpoint behind API Gateway.
// ABOUTME: Consumes the mapping-template event and updates Route 53 records.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"
	clog "github.com/coredns/coredns/plugin/pkg/log"

	"github.com/mauromedda/coredns-dyndns53"
)

var log = clog.NewWithPlugin("dyndns53-lambda")

// result is returned to API Gateway on success.
type result struct {
	Status   int    `json:"status"`
	Response string `json:"response"`
}

type app struct {
	updater *dyndns53.Updater
}

// handle runs one update. Failures are returned as errors whose message is
// the JSON error payload, for API Gateway to match with its response regexes.
func (a *app) handle(ctx context.Context, ev dyndns53.Event) (result, error) {
	resp := a.updater.Update(ctx, ev)
	if resp.Status != http.StatusOK {
		return result{}, resp.Payload()
	}
	return result{Status: resp.Status, Response: resp.Body}, nil
}

func newApp(ctx context.Context, getenv func(string) string) (*app, error) {
	path := getenv("DYNDNS53_CREDENTIALS")
	if path == "" {
		return nil, fmt.Errorf("DYNDNS53_CREDENTIALS is not set")
	}
	creds, err := dyndns53.LoadCredentials(path)
	if err != nil {
		return nil, err
	}

	parallel := 0
	if v := getenv("DYNDNS53_PARALLEL"); v != "" {
		parallel, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("DYNDNS53_PARALLEL: %w", err)
		}
	}

	backend, err := dyndns53.NewRoute53Backend(ctx, getenv("DYNDNS53_REGION"))
	if err != nil {
		return nil, err
	}

	return &app{updater: &dyndns53.Updater{
		Validator:  &dyndns53.Validator{Credentials: creds},
		Reconciler: dyndns53.NewReconciler(backend, parallel),
		Realm:      getenv("DYNDNS53_REALM"),
	}}, nil
}

func main() {
	a, err := newApp(context.Background(), os.Getenv)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	lambda.Start(a.handle)
}
