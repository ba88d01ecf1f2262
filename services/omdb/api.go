package omdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"github.com/webtor-io/lazymap"
	"golang.org/x/time/rate"
)

const (
	omdbApiKeyFlag      = "omdb-api-key"
	omdbApiSecureFlag   = "omdb-api-secure"
	omdbApiHostFlag     = "omdb-api-host"
	omdbApiPortFlag     = "omdb-api-port"
	omdbPosterStubFlag  = "omdb-poster-stub"
	omdbSearchRateFlag  = "omdb-search-rate"
	omdbCacheExpireFlag = "omdb-cache-expire"
)

func RegisterFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   omdbApiHostFlag,
			Usage:  "omdb api host",
			EnvVar: "OMDB_API_HOST",
			Value:  "www.omdbapi.com",
		},
		cli.IntFlag{
			Name:   omdbApiPortFlag,
			Usage:  "omdb api port",
			EnvVar: "OMDB_API_PORT",
			Value:  443,
		},
		cli.BoolTFlag{
			Name:   omdbApiSecureFlag,
			Usage:  "omdb api secure (https)",
			EnvVar: "OMDB_API_SECURE",
		},
		cli.StringFlag{
			Name:   omdbApiKeyFlag,
			Usage:  "omdb api key",
			Value:  "",
			EnvVar: "OMDB_API_KEY",
		},
		cli.StringFlag{
			Name:   omdbPosterStubFlag,
			Usage:  "poster url substituted when omdb has no poster",
			Value:  "https://via.placeholder.com/200x300",
			EnvVar: "OMDB_POSTER_STUB",
		},
		cli.Float64Flag{
			Name:   omdbSearchRateFlag,
			Usage:  "max search requests per second",
			Value:  1,
			EnvVar: "OMDB_SEARCH_RATE",
		},
		cli.DurationFlag{
			Name:   omdbCacheExpireFlag,
			Usage:  "metadata cache expire",
			Value:  24 * time.Hour,
			EnvVar: "OMDB_CACHE_EXPIRE",
		},
	)
}

// MovieRecord is a single catalog entry as served by the metadata provider.
// Records are immutable once fetched and never owned by the user.
type MovieRecord struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Rating    string `json:"rating"`
	PosterURL string `json:"posterUrl"`
	Genre     string `json:"genre"`
}

const (
	UnknownGenre = "Unknown"
	NoRating     = "N/A"
)

type Api struct {
	url            string
	cl             *http.Client
	prepareRequest func(r *http.Request) (*http.Request, error)
	posterStub     string
	limiter        *rate.Limiter
	byID           *lazymap.LazyMap[*MovieRecord]
	redis          redis.UniversalClient
	cacheExpire    time.Duration
}

func New(c *cli.Context, cl *http.Client, redisCl redis.UniversalClient) *Api {
	host := c.String(omdbApiHostFlag)
	port := c.Int(omdbApiPortFlag)
	secure := c.BoolT(omdbApiSecureFlag)
	key := c.String(omdbApiKeyFlag)
	if key == "" {
		return nil
	}
	protocol := "http"
	if secure {
		protocol = "https"
	}
	u := fmt.Sprintf("%v://%v:%v", protocol, host, port)
	log.Infof("omdb api endpoint %v", u)
	return newApi(u, key, cl, c.String(omdbPosterStubFlag), c.Float64(omdbSearchRateFlag), c.Duration(omdbCacheExpireFlag), redisCl)
}

func newApi(url, key string, cl *http.Client, posterStub string, searchRate float64, cacheExpire time.Duration, redisCl redis.UniversalClient) *Api {
	prepareRequest := func(r *http.Request) (*http.Request, error) {
		q := r.URL.Query()
		q.Set("apikey", key)
		r.URL.RawQuery = q.Encode()
		return r, nil
	}
	return &Api{
		url:            url,
		cl:             cl,
		prepareRequest: prepareRequest,
		posterStub:     posterStub,
		limiter:        rate.NewLimiter(rate.Limit(searchRate), 1),
		byID: lazymap.New[*MovieRecord](&lazymap.Config{
			Expire:      cacheExpire,
			ErrorExpire: 10 * time.Second,
		}),
		redis:       redisCl,
		cacheExpire: cacheExpire,
	}
}

// GetByID fetches a single record by its external id. A record the
// provider does not know yields (nil, nil). Lookups are deduplicated
// in-process and cached in redis when a redis client is configured.
func (api *Api) GetByID(ctx context.Context, id string) (*MovieRecord, error) {
	return api.byID.Get(id, func() (*MovieRecord, error) {
		if m := api.fromCache(ctx, id); m != nil {
			return m, nil
		}
		m, err := api.getByID(ctx, id)
		if err != nil || m == nil {
			return m, err
		}
		api.toCache(ctx, id, m)
		return m, nil
	})
}

func (api *Api) getByID(ctx context.Context, id string) (*MovieRecord, error) {
	raw, err := api.get(ctx, map[string]string{"i": id})
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	m := &MovieRecord{
		ID:        str(raw, "imdbID"),
		Title:     str(raw, "Title"),
		Rating:    str(raw, "imdbRating"),
		PosterURL: api.poster(str(raw, "Poster")),
		Genre:     str(raw, "Genre"),
	}
	if m.Genre == "" {
		m.Genre = UnknownGenre
	}
	if m.Rating == "" {
		m.Rating = NoRating
	}
	return m, nil
}

// Search runs a free-text query against the catalog. The search endpoint
// omits rating and genre, so results carry the N/A and Unknown sentinels.
// A negative match is not an error and yields an empty result set.
func (api *Api) Search(ctx context.Context, query string) ([]MovieRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if err := api.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "wait for rate limiter")
	}
	reqURL := fmt.Sprintf("%s/", api.url)
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	q := req.URL.Query()
	q.Set("s", query)
	req.URL.RawQuery = q.Encode()
	req, err = api.prepareRequest(req)
	if err != nil {
		return nil, errors.Wrap(err, "prepare request")
	}
	resp, err := api.cl.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)
	var sr struct {
		Response string `json:"Response"`
		Error    string `json:"Error"`
		Search   []struct {
			Title  string `json:"Title"`
			ImdbID string `json:"imdbID"`
			Poster string `json:"Poster"`
		} `json:"Search"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}
	if sr.Response != "True" {
		return nil, nil
	}
	movies := make([]MovieRecord, len(sr.Search))
	for i, item := range sr.Search {
		movies[i] = MovieRecord{
			ID:        item.ImdbID,
			Title:     item.Title,
			Rating:    NoRating,
			PosterURL: api.poster(item.Poster),
			Genre:     UnknownGenre,
		}
	}
	return movies, nil
}

func (api *Api) get(ctx context.Context, params map[string]string) (map[string]any, error) {
	reqURL := fmt.Sprintf("%s/", api.url)
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	q := req.URL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()
	req, err = api.prepareRequest(req)
	if err != nil {
		return nil, errors.Wrap(err, "prepare request")
	}
	resp, err := api.cl.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)
	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}
	if r, ok := raw["Response"].(string); !ok || r != "True" {
		if strings.Contains(fmt.Sprintf("%s", raw["Error"]), "not found") {
			return nil, nil
		}
		return nil, errors.Errorf("omdb error: %v", raw["Error"])
	}
	return raw, nil
}

func (api *Api) poster(p string) string {
	if p == "" || p == "N/A" {
		return api.posterStub
	}
	return p
}

func (api *Api) fromCache(ctx context.Context, id string) *MovieRecord {
	if api.redis == nil {
		return nil
	}
	data, err := api.redis.Get(ctx, "omdb:i:"+id).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.WithError(err).Warn("failed to read metadata cache")
		}
		return nil
	}
	var m MovieRecord
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return &m
}

func (api *Api) toCache(ctx context.Context, id string, m *MovieRecord) {
	if api.redis == nil {
		return
	}
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	if err := api.redis.Set(ctx, "omdb:i:"+id, data, api.cacheExpire).Err(); err != nil {
		log.WithError(err).Warn("failed to write metadata cache")
	}
}

func str(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}
