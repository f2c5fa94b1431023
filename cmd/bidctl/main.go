package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bidhub/procurement/internal/authz"
	"github.com/bidhub/procurement/internal/bid"
	"github.com/bidhub/procurement/internal/db"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	_ = godotenv.Load()

	ctx := context.Background()

	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		log.Fatal().Msg("set DB_DSN or DATABASE_URL")
	}

	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("could not connect to database")
	}
	defer pool.Close()

	service := bid.NewService(bid.NewRepository(pool))

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "migrate":
		if err := db.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}
	case "create":
		if err := runCreate(ctx, service, args); err != nil {
			log.Fatal().Err(err).Msg("could not create bid")
		}
	case "list":
		if err := runList(ctx, service, args); err != nil {
			log.Fatal().Err(err).Msg("could not list bids")
		}
	case "delete":
		if err := runDelete(ctx, service, args); err != nil {
			log.Fatal().Err(err).Msg("could not delete bid")
		}
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "bidctl")
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  bidctl migrate")
	fmt.Fprintln(os.Stderr, "  bidctl create --name \"Food Service 2026\" [--status Draft] [--cooperative 1 | --district 2] [--school 3] [--year 2026]")
	fmt.Fprintln(os.Stderr, "  bidctl list [--cooperative 1 | --district 2] [--school 3]   (no flags lists every bid)")
	fmt.Fprintln(os.Stderr, "  bidctl delete --id 42")
}

// orgFlags registers the organization flags shared by create and list.
// Zero means unset.
type orgFlags struct {
	cooperative, district, school *int64
}

func registerOrgFlags(fs *flag.FlagSet) orgFlags {
	return orgFlags{
		cooperative: fs.Int64("cooperative", 0, "cooperative id"),
		district:    fs.Int64("district", 0, "district id"),
		school:      fs.Int64("school", 0, "school id"),
	}
}

func optional(v *int64) *int64 {
	if v == nil || *v == 0 {
		return nil
	}
	return v
}

func (o orgFlags) filter() bid.ScopeFilter {
	return bid.ScopeFilter{
		CooperativeID: optional(o.cooperative),
		DistrictID:    optional(o.district),
		SchoolID:      optional(o.school),
	}
}

func runCreate(ctx context.Context, service *bid.Service, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		name   = fs.String("name", "", "bid name")
		code   = fs.String("code", "", "bid code, generated when empty")
		status = fs.String("status", "", "initial status (default Draft)")
		year   = fs.String("year", "", "bid year")
		owner  = fs.Int64("owner", 0, "bid manager user id")
		org    = registerOrgFlags(fs)
	)

	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*name) == "" {
		return errors.New("name is required")
	}

	in := bid.CreateInput{
		Name:          *name,
		Status:        *status,
		CooperativeID: optional(org.cooperative),
		DistrictID:    optional(org.district),
		SchoolID:      optional(org.school),
		UserID:        optional(owner),
	}
	if *code != "" {
		in.Code = code
	}
	if *year != "" {
		in.BidYear = year
	}

	created, err := service.CreateBid(ctx, in)
	if err != nil {
		return err
	}

	output, _ := json.MarshalIndent(created, "", "  ")
	fmt.Println(string(output))
	return nil
}

func runList(ctx context.Context, service *bid.Service, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	org := registerOrgFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		bids []bid.Bid
		err  error
	)
	if f := org.filter(); f.SchoolID != nil {
		bids, err = service.FindByScope(ctx, f)
	} else {
		bids, err = service.FindByOrganization(ctx, authz.OrganizationFilter{
			CooperativeID: f.CooperativeID,
			DistrictID:    f.DistrictID,
		})
	}
	if err != nil {
		return err
	}

	if len(bids) == 0 {
		fmt.Println("no bids found")
		return nil
	}

	encoded, _ := json.MarshalIndent(bids, "", "  ")
	fmt.Println(string(encoded))
	return nil
}

func runDelete(ctx context.Context, service *bid.Service, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	id := fs.Int64("id", 0, "bid id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return errors.New("id is required")
	}

	if err := service.DeleteBid(ctx, *id); err != nil {
		return err
	}
	log.Info().Int64("id", *id).Msg("bid deleted")
	return nil
}
