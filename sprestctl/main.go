package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"syscall"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/docopt/docopt-go"

	"golang.org/x/term"

	"github.com/spgo/sprest/sprest"
)

const SprestCtlVersion = "0.0.1"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	usage := `Sharepoint rest control.

Usage:
    sprestctl get --site_url=<site_url> <path>
        [--select=<fields>]
        [--expand=<fields>]
        [--filter=<filter>]
        [--order_by=<order_by>]...
        [--skip=<n>]
        [--top=<n>]
        [--jwt=<jwt>]
    sprestctl update-web --site_url=<site_url> <props_json> [--jwt=<jwt>]
    sprestctl token-info --jwt=<jwt>

Options:
    -h --help                Show this screen.
    --version                Show version.
    --site_url=<site_url>    Absolute url of the site, e.g. https://contoso.sharepoint.com/sites/dev
    --select=<fields>        Comma-separated $select fields.
    --expand=<fields>        Comma-separated $expand fields.
    --filter=<filter>        $filter expression.
    --order_by=<order_by>    Order clause, "Field" or "Field desc". Repeatable.
    --skip=<n>               $skip count.
    --top=<n>                $top count.
    --jwt=<jwt>              Bearer token. Prompted for when omitted on a tty.`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], SprestCtlVersion)
	if err != nil {
		panic(err)
	}

	if get_, _ := opts.Bool("get"); get_ {
		get(opts)
	} else if updateWeb_, _ := opts.Bool("update-web"); updateWeb_ {
		updateWeb(opts)
	} else if tokenInfo_, _ := opts.Bool("token-info"); tokenInfo_ {
		tokenInfo(opts)
	}
}

func get(opts docopt.Opts) {
	siteUrl, _ := opts.String("--site_url")
	path, _ := opts.String("<path>")

	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := sprest.NewClientWithContext(cancelCtx)
	defer client.Close()
	client.SetBearerToken(bearerToken(opts))

	collection, err := sprest.NewQueryableCollection(client, siteUrl, sprest.CombinePaths("_api", path))
	if err != nil {
		Err.Printf("Invalid path (%s).\n", err)
		os.Exit(1)
	}

	if selects, err := opts.String("--select"); err == nil && selects != "" {
		collection.Select(strings.Split(selects, ",")...)
	}
	if expands, err := opts.String("--expand"); err == nil && expands != "" {
		collection.Expand(strings.Split(expands, ",")...)
	}
	if filter, err := opts.String("--filter"); err == nil && filter != "" {
		collection.Filter(filter)
	}
	for _, orderBy := range stringList(opts, "--order_by") {
		field, direction, _ := strings.Cut(orderBy, " ")
		collection.OrderBy(field, strings.ToLower(direction) != "desc")
	}
	if skip, ok := intOpt(opts, "--skip"); ok {
		collection.Skip(skip)
	}
	if top, ok := intOpt(opts, "--top"); ok {
		collection.Top(top)
	}

	response, err := collection.GetSync(cancelCtx)
	if err != nil {
		Err.Printf("Request failed (%s).\n", err)
		os.Exit(1)
	}
	Out.Printf("%s", response.Body)
}

func updateWeb(opts docopt.Opts) {
	siteUrl, _ := opts.String("--site_url")
	propsJson, _ := opts.String("<props_json>")

	props := map[string]any{}
	if err := json.Unmarshal([]byte(propsJson), &props); err != nil {
		Err.Printf("Invalid props json (%s).\n", err)
		os.Exit(1)
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := sprest.NewClientWithContext(cancelCtx)
	defer client.Close()
	client.SetBearerToken(bearerToken(opts))

	web, err := sprest.NewWeb(client, siteUrl)
	if err != nil {
		Err.Printf("Invalid site url (%s).\n", err)
		os.Exit(1)
	}

	result, err := web.Update(cancelCtx, props)
	if err != nil {
		Err.Printf("Update failed (%s).\n", err)
		os.Exit(1)
	}
	Out.Printf("%s", result.Data)
}

func tokenInfo(opts docopt.Opts) {
	jwt, _ := opts.String("--jwt")

	token, err := sprest.ParseBearerTokenUnverified(jwt)
	if err != nil {
		Err.Printf("Invalid token (%s).\n", err)
		os.Exit(1)
	}

	Out.Printf("user: %s", token.UserName)
	Out.Printf("audience: %s", token.Audience)
	Out.Printf("expires: %s (expired=%t)", token.ExpireTime, token.Expired())

	claims := gojwt.MapClaims{}
	if _, _, err := gojwt.NewParser().ParseUnverified(jwt, claims); err == nil {
		if claimsJson, err := json.MarshalIndent(claims, "", "  "); err == nil {
			Out.Printf("claims: %s", claimsJson)
		}
	}
}

func bearerToken(opts docopt.Opts) string {
	if jwt, err := opts.String("--jwt"); err == nil && jwt != "" {
		return jwt
	}
	if term.IsTerminal(int(syscall.Stdin)) {
		fmt.Print("Enter bearer token (empty for none): ")
		tokenBytes, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			panic(err)
		}
		fmt.Printf("\n")
		return string(tokenBytes)
	}
	return ""
}

func stringList(opts docopt.Opts, key string) []string {
	values := []string{}
	if raw, ok := opts[key]; ok {
		switch v := raw.(type) {
		case []string:
			values = v
		case []any:
			for _, item := range v {
				if itemStr, ok := item.(string); ok {
					values = append(values, itemStr)
				}
			}
		}
	}
	return values
}

func intOpt(opts docopt.Opts, key string) (int, bool) {
	raw, err := opts.String(key)
	if err != nil || raw == "" {
		return 0, false
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		Err.Printf("Invalid value for %s (%s).\n", key, err)
		os.Exit(1)
	}
	return value, true
}
