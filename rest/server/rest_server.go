package server

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"os"

	"github.com/nandlabs/jobsched/codec"
	"github.com/nandlabs/jobsched/ioutils"
	"github.com/nandlabs/jobsched/lifecycle"
	"github.com/nandlabs/jobsched/rest"
	"github.com/nandlabs/jobsched/textutils"
	"github.com/nandlabs/jobsched/turbo"
	"github.com/nandlabs/jobsched/turbo/filters"
	"github.com/nandlabs/jobsched/uuid"
)

const (
	QueryParam Paramtype = iota
	PathParam
)

type HandlerFunc func(context Context)

type Paramtype int

// Server is a REST server run as a lifecycle component, with methods to register routes.
type Server interface {
	// Server is a lifecytcle component
	lifecycle.Component
	// Opts returns the options of the server
	Opts() *Options
	// AddRoute adds a route to the server
	AddRoute(path string, handler HandlerFunc, method ...string) (err error)
	// Post adds a POST route to the server
	Post(path string, handler HandlerFunc) (err error)
	// Get adds a GET route to the server
	Get(path string, handler HandlerFunc) (err error)
	// Put adds a PUT route to the server
	Put(path string, handler HandlerFunc) (err error)
	// Delete adds a DELETE route to the server
	Delete(path string, handler HandlerFunc) (err error)
}
type DataTypProvider func() any

var servers = make(map[string]Server)
var mutex = &sync.RWMutex{}

type restServer struct {
	*lifecycle.SimpleComponent
	opts       *Options
	router     *turbo.Router
	httpServer *http.Server
	corsFilter *filters.CorsFilter
}

// AddRoute adds a route to the server
func (rs *restServer) AddRoute(path string, handler HandlerFunc, methods ...string) (err error) {
	p := path
	if rs.opts.PathPrefix != textutils.EmptyStr {
		if !strings.HasPrefix(path, rest.PathSeparator) {
			p = "/" + path
		}
		if strings.HasSuffix(rs.opts.PathPrefix, rest.PathSeparator) {
			p = p[1:]
		}
	}
	p = rs.opts.PathPrefix + p
	route := rs.router.Add(p, func(w http.ResponseWriter, r *http.Request) {
		ctx := Context{
			request:  r,
			response: w,
		}
		handler(ctx)
	}, methods...)
	if rs.corsFilter != nil {
		route.AddFilter(rs.corsFilter.HandleCors)
	}
	return
}

// Post adds a route to the server
func (rs *restServer) Post(path string, handler HandlerFunc) (err error) {
	return rs.AddRoute(path, handler, http.MethodPost)
}

// Get adds a route to the server
func (rs *restServer) Get(path string, handler HandlerFunc) (err error) {
	return rs.AddRoute(path, handler, http.MethodGet)
}

// Put adds a route to the server
func (rs *restServer) Put(path string, handler HandlerFunc) (err error) {
	return rs.AddRoute(path, handler, http.MethodPut)
}

// Delete adds a route to the server
func (rs *restServer) Delete(path string, handler HandlerFunc) (err error) {
	return rs.AddRoute(path, handler, http.MethodDelete)
}

// Opts returns the options of the server
func (rs *restServer) Opts() *Options {
	return rs.opts
}

// NewServerFrom creates a new Server with the options read from the given configuration file.
func NewServerFrom(configPath string) (Server, error) {
	f, err := os.Open(configPath)
	var opts *Options
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mimeType := ioutils.GetMimeFromExt(path.Ext(configPath))
	// Get the codec for the file.
	codec, err := codec.GetDefault(mimeType)
	if err != nil {
		return nil, err
	}

	err = codec.Read(f, &opts)
	if err != nil {
		return nil, err
	}
	return NewServer(opts)

}

// DefaultServer creates a new Server with the default options.
func DefaultServer() (Server, error) {
	opts := DefaultOptions()
	uid, err := uuid.V4()
	if err != nil {
		return nil, err

	}
	opts.Id = uid.String()
	return NewServer(opts)
}

// NewServer creates a new Server with the given options.
func NewServer(opts *Options) (rServer Server, err error) {
	if opts == nil {
		return nil, ErrNilOptions
	}
	err = opts.Validate()
	if err != nil {
		return
	}
	router := turbo.NewRouter()
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 20000
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 20000
	}
	httpServer := &http.Server{
		Handler:      router,
		Addr:         opts.ListenHost + ":" + strconv.Itoa(int(opts.ListenPort)),
		ReadTimeout:  time.Duration(readTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(writeTimeout) * time.Millisecond,
	}
	var corsFilter *filters.CorsFilter
	if opts.Cors != nil {
		corsFilter = opts.Cors.NewFilter()
	}
	rServer = &restServer{
		SimpleComponent: &lifecycle.SimpleComponent{
			CompId: opts.Id,
			StartFunc: func() error {
				if opts.EnableTLS {
					go httpServer.ListenAndServeTLS(opts.CertPath, opts.PrivateKeyPath)
				} else {
					go httpServer.ListenAndServe()
				}
				return nil

			},
			StopFunc: func() error {
				fmt.Println("Stopping HTTP server")
				return httpServer.Shutdown(context.Background())
			},
		},
		opts:       opts,
		router:     router,
		httpServer: httpServer,
		corsFilter: corsFilter,
	}
	mutex.Lock()
	defer mutex.Unlock()
	servers[opts.Id] = rServer
	return
}
