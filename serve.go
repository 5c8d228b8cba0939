package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/acme/autocert"

	"github.com/vipnode/nodehealth/admin"
	"github.com/vipnode/nodehealth/status"
)

// newStatusService returns the JSONRPC status service for the running
// networks.
func newStatusService(rt *app, cacheDuration time.Duration) *status.Service {
	svc := &status.Service{ByNetwork: map[string]*status.NetworkStatus{}}
	now := time.Now()
	for _, n := range rt.Networks {
		svc.ByNetwork[n.Name] = &status.NetworkStatus{
			Source:        n.Set,
			TimeStarted:   now,
			Version:       fmt.Sprintf("nodehealth/%s", Version),
			CacheDuration: cacheDuration,
		}
	}
	return svc
}

// newAdminService returns the signed admin service, or nil if no admin
// addresses are configured.
func newAdminService(rt *app, admins []string) (*admin.Service, error) {
	if len(admins) == 0 {
		return nil, nil
	}
	for _, a := range admins {
		if !common.IsHexAddress(a) {
			return nil, ErrExplain{fmt.Errorf("invalid admin address: %q", a), "Admin addresses are hex Ethereum addresses, such as the one printed by: nodehealth admin address"}
		}
	}
	svc := &admin.Service{
		Controllers: map[string]admin.Controller{},
		Admins:      admins,
		Store:       rt.Store,
	}
	for _, n := range rt.Networks {
		svc.Controllers[n.Name] = n.Set
	}
	return svc, nil
}

func newServer(svc *status.Service, adminSvc *admin.Service, allowOrigin string) (*server, error) {
	handler := &server{header: http.Header{}}
	if allowOrigin != "" {
		handler.header.Set("Access-Control-Allow-Origin", allowOrigin)
	}
	if err := handler.Register("health_", svc); err != nil {
		return nil, err
	}
	if adminSvc != nil {
		if err := handler.Register(admin.Prefix, adminSvc); err != nil {
			return nil, err
		}
	}
	return handler, nil
}

func runServe(options Options) error {
	m := newMetrics(options.Serve.Metrics)
	rt, err := setup(options, options.Serve.Args.Networks, m)
	if err != nil {
		return err
	}
	defer rt.Close()
	serveMetrics(options.Serve.Metrics, m)

	w, err := watch(rt, false)
	if err != nil {
		return err
	}
	defer w.Stop()

	adminSvc, err := newAdminService(rt, options.Serve.Admin)
	if err != nil {
		return err
	}
	if adminSvc != nil {
		logger.Infof("Accepting signed admin requests from: %s", strings.Join(options.Serve.Admin, ", "))
	}
	handler, err := newServer(newStatusService(rt, options.Serve.CacheDuration), adminSvc, options.Serve.AllowOrigin)
	if err != nil {
		return err
	}

	if options.Serve.TLSHost != "" {
		if !strings.HasSuffix(options.Serve.Bind, ":443") {
			logger.Warningf("Ignoring --bind value (%q) because it's not 443 and --tlshost is set.", options.Serve.Bind)
		}
		logger.Infof("Starting nodehealth (version %s), acquiring ACME certificate and listening on: https://%s", Version, options.Serve.TLSHost)
		err := http.Serve(autocert.NewListener(options.Serve.TLSHost), handler)
		if strings.HasSuffix(err.Error(), "bind: permission denied") {
			err = ErrExplain{err, "Serving with autocert requires CAP_NET_BIND_SERVICE capability permission to bind on low-numbered ports. See: https://superuser.com/questions/710253/allow-non-root-process-to-bind-to-port-80-and-443/892391"}
		}
		return err
	}
	logger.Infof("Starting nodehealth (version %s), listening on: %s", Version, options.Serve.Bind)
	return http.ListenAndServe(options.Serve.Bind, handler)
}
