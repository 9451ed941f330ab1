// seed_demo.go: standalone script that loads demo startups, investors and
// matches from a YAML file through the admin API.
//
// Usage:
//
//	go run scripts/seed_demo.go -file demo.yaml -api http://localhost:8700 -token $GODSCORE_ADMIN_TOKEN
//
// File layout:
//
//	startups:
//	  - key: acme
//	    name: Acme
//	    sectors: [fintech]
//	    stage: 2
//	    geography: europe
//	    features: {team: 0.8, traction: 0.6}
//	investors:
//	  - key: fund
//	    name: Jane Partner
//	    firm: Big Fund
//	    tier: 1
//	matches:
//	  - startup: acme
//	    investor: fund
//	    score: 0.82
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"
)

type seedStartup struct {
	Key           string             `yaml:"key" json:"-"`
	Name          string             `yaml:"name" json:"name"`
	PublicProfile bool               `yaml:"public_profile" json:"public_profile"`
	Sectors       []string           `yaml:"sectors" json:"sectors"`
	Stage         int                `yaml:"stage" json:"stage"`
	Geography     string             `yaml:"geography" json:"geography"`
	Features      map[string]float64 `yaml:"features" json:"features,omitempty"`
}

type seedInvestor struct {
	Key           string `yaml:"key" json:"-"`
	Name          string `yaml:"name" json:"name"`
	Firm          string `yaml:"firm" json:"firm"`
	Type          string `yaml:"type" json:"type"`
	Tier          int    `yaml:"tier" json:"tier"`
	PublicProfile bool   `yaml:"public_profile" json:"public_profile"`
}

type seedMatch struct {
	Startup  string  `yaml:"startup"`
	Investor string  `yaml:"investor"`
	Score    float64 `yaml:"score"`
}

type seedFile struct {
	Startups  []seedStartup  `yaml:"startups"`
	Investors []seedInvestor `yaml:"investors"`
	Matches   []seedMatch    `yaml:"matches"`
}

type client struct {
	base  string
	token string
	http  *http.Client
}

func (c *client) post(path string, body interface{}) (map[string]interface{}, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest("POST", c.base+"/api/v1/admin"+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("status %d: %v", resp.StatusCode, out["error"])
	}
	return out, nil
}

func main() {
	path := flag.String("file", "demo.yaml", "path to the seed file")
	apiURL := flag.String("api", "http://localhost:8700", "godscore API base URL")
	token := flag.String("token", os.Getenv("GODSCORE_ADMIN_TOKEN"), "admin bearer token")
	dryRun := flag.Bool("dry-run", false, "print what would be created without posting")
	flag.Parse()

	data, err := os.ReadFile(*path)
	if err != nil {
		log.Fatalf("read seed file: %v", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		log.Fatalf("parse seed file: %v", err)
	}
	log.Printf("parsed %d startups, %d investors, %d matches from %s",
		len(seed.Startups), len(seed.Investors), len(seed.Matches), *path)

	if *dryRun {
		for _, s := range seed.Startups {
			fmt.Printf("startup %s: %s (stage=%d, sectors=%v, features=%d)\n", s.Key, s.Name, s.Stage, s.Sectors, len(s.Features))
		}
		for _, i := range seed.Investors {
			fmt.Printf("investor %s: %s (tier=%d)\n", i.Key, i.Name, i.Tier)
		}
		for _, m := range seed.Matches {
			fmt.Printf("match %s -> %s (%.2f)\n", m.Startup, m.Investor, m.Score)
		}
		return
	}

	c := &client{base: *apiURL, token: *token, http: &http.Client{}}
	ids := make(map[string]string)
	failed := 0

	for _, s := range seed.Startups {
		out, err := c.post("/startups", s)
		if err != nil {
			log.Printf("skip startup %q: %v", s.Key, err)
			failed++
			continue
		}
		ids["startup:"+s.Key], _ = out["id"].(string)
	}
	for _, i := range seed.Investors {
		out, err := c.post("/investors", i)
		if err != nil {
			log.Printf("skip investor %q: %v", i.Key, err)
			failed++
			continue
		}
		ids["investor:"+i.Key], _ = out["id"].(string)
	}

	created := 0
	for _, m := range seed.Matches {
		sid, iid := ids["startup:"+m.Startup], ids["investor:"+m.Investor]
		if sid == "" || iid == "" {
			log.Printf("skip match %s -> %s: unknown key", m.Startup, m.Investor)
			failed++
			continue
		}
		_, err := c.post("/matches", map[string]interface{}{
			"startup_id":  sid,
			"investor_id": iid,
			"match_score": m.Score,
		})
		if err != nil {
			log.Printf("skip match %s -> %s: %v", m.Startup, m.Investor, err)
			failed++
			continue
		}
		created++
	}

	log.Printf("done: %d records, %d matches created, %d failed", len(ids), created, failed)
}
