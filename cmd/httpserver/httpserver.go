// Package httpserver manages server creation and api routing.
package httpserver

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/accountdelivery"
	"github.com/go-petr/pet-ledger/internal/accountrepo"
	"github.com/go-petr/pet-ledger/internal/accountservice"
	"github.com/go-petr/pet-ledger/internal/balancedelivery"
	"github.com/go-petr/pet-ledger/internal/balanceservice"
	"github.com/go-petr/pet-ledger/internal/ledgerrepo"
	"github.com/go-petr/pet-ledger/internal/middleware"
	"github.com/go-petr/pet-ledger/internal/sessiondelivery"
	"github.com/go-petr/pet-ledger/internal/sessionrepo"
	"github.com/go-petr/pet-ledger/internal/sessionservice"
	"github.com/go-petr/pet-ledger/internal/statementdelivery"
	"github.com/go-petr/pet-ledger/internal/statementservice"
	"github.com/go-petr/pet-ledger/internal/transferdelivery"
	"github.com/go-petr/pet-ledger/internal/transferservice"
	"github.com/go-petr/pet-ledger/internal/userdelivery"
	"github.com/go-petr/pet-ledger/internal/userrepo"
	"github.com/go-petr/pet-ledger/internal/userservice"
	"github.com/go-petr/pet-ledger/pkg/configpkg"
	"github.com/go-petr/pet-ledger/pkg/moneypkg"
	"github.com/go-petr/pet-ledger/pkg/tokenpkg"
)

// Server holds db connection, handlers router and configuration.
type Server struct {
	DB     *sql.DB
	Engine *gin.Engine
	Config configpkg.Config
}

// ServeHTTP implements the http.Handler interface for the Server type.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Engine.ServeHTTP(w, r)
}

// New creates Server type with instantiated domains and routes.
func New(conn *sql.DB, logger zerolog.Logger, config configpkg.Config) (*Server, error) {
	userRepo := userrepo.NewRepoPGS(conn)
	accountRepo := accountrepo.NewRepoPGS(conn)
	sessionRepo := sessionrepo.NewRepoPGS(conn)
	ledgerRepo := ledgerrepo.NewRepoPGS(conn, config.LockTimeout)

	tokenMaker, err := tokenpkg.New(config.TokenType, config.TokenSymmetricKey)
	if err != nil {
		return nil, errors.New("cannot create token maker")
	}

	attempts := config.MaxCommitAttempts

	userService := userservice.New(userRepo)
	accountService := accountservice.New(accountRepo, attempts)
	balanceService := balanceservice.New(ledgerRepo, attempts)
	transferService := transferservice.New(ledgerRepo, attempts)
	statementService := statementservice.New(ledgerRepo, attempts)

	sessionService, err := sessionservice.New(sessionRepo, config, tokenMaker)
	if err != nil {
		return nil, errors.New("cannot initialize session service")
	}

	userHandler := userdelivery.NewHandler(userService, sessionService)
	accountHandler := accountdelivery.NewHandler(accountService)
	balanceHandler := balancedelivery.NewHandler(balanceService)
	transferHandler := transferdelivery.NewHandler(transferService)
	statementHandler := statementdelivery.NewHandler(statementService)
	sessionHandler := sessiondelivery.NewHandler(sessionService)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := v.RegisterValidation("accounttype", accountdelivery.ValidAccountType); err != nil {
			return nil, errors.New("cannot register account type validator")
		}

		if err := v.RegisterValidation("amount", moneypkg.ValidAmount); err != nil {
			return nil, errors.New("cannot register amount validator")
		}
	}

	engine := gin.New()

	engine.Use(middleware.RequestLogger(logger))
	engine.Use(gin.Recovery())

	engine.POST("/users", userHandler.Create)
	engine.POST("/users/login", userHandler.Login)
	engine.POST("/sessions", sessionHandler.RenewAccessToken)

	authRoutes := engine.Group("/").Use(middleware.AuthMiddleware(sessionService.TokenMaker))

	authRoutes.GET("/users/me", userHandler.Me)

	authRoutes.POST("/accounts", accountHandler.Create)
	authRoutes.GET("/accounts", accountHandler.List)
	authRoutes.GET("/accounts/:id", accountHandler.Get)
	authRoutes.DELETE("/accounts/:id", accountHandler.Delete)

	authRoutes.POST("/accounts/:id/deposit", balanceHandler.Deposit)
	authRoutes.POST("/accounts/:id/withdraw", balanceHandler.Withdraw)
	authRoutes.GET("/accounts/:id/transactions", balanceHandler.ListTransactions)

	authRoutes.POST("/accounts/:id/statements", statementHandler.Generate)
	authRoutes.GET("/accounts/:id/statements", statementHandler.List)

	authRoutes.POST("/transfers", transferHandler.Create)
	authRoutes.GET("/transfers", transferHandler.List)

	server := &Server{
		DB:     conn,
		Engine: engine,
		Config: config,
	}

	return server, nil
}
