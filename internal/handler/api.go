package handler

import (
	"time"

	"github.com/intakeplan/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db        *gorm.DB
	products  *service.ProductService
	schedules *service.ScheduleService
	auth      *service.AuthService
	calendar  *service.CalendarService
	now       func() time.Time
}

// NewAPI constructs a handler set with shared services.
func NewAPI(db *gorm.DB) *API {
	return &API{
		db:        db,
		products:  service.NewProductService(db),
		schedules: service.NewScheduleService(db),
		auth:      service.NewAuthService(db),
		calendar:  service.NewCalendarService(db),
		now:       time.Now,
	}
}

// DB exposes the underlying gorm instance.
func (a *API) DB() *gorm.DB {
	return a.db
}

// Products exposes the catalog service for seeding at startup.
func (a *API) Products() *service.ProductService {
	return a.products
}
