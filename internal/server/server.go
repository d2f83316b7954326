// Package server is the thin HTTP surface over the reconstruction core.
package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/portdeveloper/abi-recon/internal/assembler"
	"github.com/portdeveloper/abi-recon/internal/cache"
	"github.com/portdeveloper/abi-recon/internal/chainreader"
)

// Server routes ABI requests to per-request assemblers. The RPC endpoint
// rides in the URL so callers bring their own node, one assembler state
// (cache, source chains) is shared across requests.
type Server struct {
	router   *gin.Engine
	store    cache.Store
	loader   assembler.VerifiedLoader
	resolver assembler.SignatureResolver
	log      zerolog.Logger

	// dial is swappable so tests can slide a mock reader under the handler.
	dial func(rawURL string) (chainreader.Reader, error)
}

func New(store cache.Store, loader assembler.VerifiedLoader, resolver assembler.SignatureResolver, log zerolog.Logger) *Server {
	s := &Server{
		store:    store,
		loader:   loader,
		resolver: resolver,
		log:      log,
		dial: func(rawURL string) (chainreader.Reader, error) {
			return chainreader.Dial(rawURL)
		},
	}

	router := gin.New()
	router.Use(gin.Recovery())

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	router.Use(cors.New(config))

	router.GET("/abi/:chainId/:address/*rpcUrl", s.getABI)
	router.DELETE("/cache", s.clearCache)

	s.router = router
	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

func (s *Server) getABI(c *gin.Context) {
	chainID, err := strconv.ParseInt(c.Param("chainId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chainId: must be a number"})
		return
	}
	address := c.Param("address")
	rpcURL := strings.TrimPrefix(c.Param("rpcUrl"), "/")
	if rpcURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rpcUrl: cannot be empty"})
		return
	}
	if !strings.Contains(rpcURL, "://") {
		rpcURL = "https://" + rpcURL
	}

	reader, err := s.dial(rpcURL)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to connect to RPC endpoint"})
		return
	}
	if closer, ok := reader.(interface{ Close() }); ok {
		defer closer.Close()
	}

	asm := assembler.New(reader, s.loader, s.resolver, s.store, s.log)
	result, err := asm.Assemble(c.Request.Context(), address, chainID)
	if err != nil {
		var invalid *assembler.InvalidAddressError
		var noContract *assembler.NoContractError
		switch {
		case errors.As(err, &invalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.As(err, &noContract):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			s.log.Error().Err(err).Str("address", address).Msg("assembly failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to reconstruct ABI"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) clearCache(c *gin.Context) {
	s.store.Clear()
	c.Status(http.StatusNoContent)
}
