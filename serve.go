package main

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	cs "github.com/webtor-io/common-services"

	wm "github.com/cinevault-io/web-ui/handlers/movies"
	wsess "github.com/cinevault-io/web-ui/handlers/session"
	sapi "github.com/cinevault-io/web-ui/services/api"
	"github.com/cinevault-io/web-ui/services/auth"
	"github.com/cinevault-io/web-ui/services/common"
	"github.com/cinevault-io/web-ui/services/library"
	"github.com/cinevault-io/web-ui/services/notification"
	"github.com/cinevault-io/web-ui/services/omdb"
	w "github.com/cinevault-io/web-ui/services/web"
)

func makeServeCMD() cli.Command {
	serveCMD := cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Serves web server",
		Action:  serve,
	}
	configureServe(&serveCMD)
	return serveCMD
}

func configureServe(c *cli.Command) {
	c.Flags = cs.RegisterProbeFlags(c.Flags)
	c.Flags = cs.RegisterPprofFlags(c.Flags)
	c.Flags = cs.RegisterRedisClientFlags(c.Flags)
	c.Flags = w.RegisterFlags(c.Flags)
	c.Flags = common.RegisterFlags(c.Flags)
	c.Flags = omdb.RegisterFlags(c.Flags)
	c.Flags = sapi.RegisterFlags(c.Flags)
	c.Flags = library.RegisterFlags(c.Flags)
}

func serve(c *cli.Context) error {
	// Setting HTTP Client
	cl := http.DefaultClient

	var servers []cs.Servable

	// Setting Probe
	probe := cs.NewProbe(c)
	if probe != nil {
		servers = append(servers, probe)
		defer probe.Close()
	}

	// Setting Pprof
	pprof := cs.NewPprof(c)
	if pprof != nil {
		servers = append(servers, pprof)
		defer pprof.Close()
	}

	// Setting Gin
	r := gin.Default()
	r.RedirectTrailingSlash = false

	// Setting session store
	store := cookie.NewStore([]byte(c.String(common.SessionSecretFlag)))
	r.Use(sessions.Sessions("session", store))

	// Setting Auth
	auth.RegisterHandler(r)

	// Setting Redis
	redis := cs.NewRedisClient(c)
	defer redis.Close()

	// Setting OMDB API
	omdbApi := omdb.New(c, cl, redis.Get())
	if omdbApi == nil {
		return errors.New("omdb api key is required")
	}

	// Setting Backend Api
	backend := sapi.New(c, cl)

	// Setting Library Sessions
	libSessions := library.NewSessions(c, backend, omdbApi, notification.Log{})

	// Setting SessionHandler
	wsess.RegisterHandler(r, backend, libSessions)

	// Setting MoviesHandler
	wm.RegisterHandler(r, libSessions)

	// Setting Web
	web, err := w.New(c, r)
	if err != nil {
		return err
	}
	servers = append(servers, web)
	defer web.Close()

	// Setting Serve
	serve := cs.NewServe(servers...)

	// And SERVE!
	err = serve.Serve()
	if err != nil {
		log.WithError(err).Error("got server error")
	}
	return err
}
