package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	domain "github.com/yuya-sudo/yuya-api/internal/domain"
	"github.com/yuya-sudo/yuya-api/internal/repositories"
)

const defaultOrderIDPrefix = "PED-"

var (
	// ErrCheckoutInvalidInput indicates the caller supplied invalid input parameters.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutUnavailable indicates checkout dependencies are currently unavailable.
	ErrCheckoutUnavailable = errors.New("checkout: unavailable")
	// ErrCheckoutEmptyCart indicates the session cart holds no items.
	ErrCheckoutEmptyCart = errors.New("checkout: cart is empty")
	// ErrCheckoutOrderNotFound indicates the requested order does not exist.
	ErrCheckoutOrderNotFound = errors.New("checkout: order not found")
)

// Cuban numbering: mobiles start with 5-9 and carry eight digits, landlines
// start with 2-4 and carry seven or eight. The country prefix is optional.
var cubanPhonePattern = regexp.MustCompile(`^(\+?53)?([5-9]\d{7}|[2-4]\d{6,7})$`)

// FieldErrors maps form field names to human-readable validation failures.
// It wraps ErrCheckoutInvalidInput so callers can branch with errors.Is.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fmt.Sprintf("checkout: invalid fields: %s", strings.Join(fields, ", "))
}

func (e FieldErrors) Unwrap() error {
	return ErrCheckoutInvalidInput
}

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Carts         CartService
	Config        storeConfigSource
	Orders        repositories.OrderRepository
	Clock         func() time.Time
	Logger        func(ctx context.Context, event string, fields map[string]any)
	WhatsAppPhone string
	OrderIDPrefix string
}

type checkoutService struct {
	carts         CartService
	config        storeConfigSource
	orders        repositories.OrderRepository
	now           func() time.Time
	logger        func(ctx context.Context, event string, fields map[string]any)
	whatsAppPhone string
	orderIDPrefix string
	printer       *message.Printer
}

// NewCheckoutService constructs a CheckoutService enforcing dependency validation.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Carts == nil {
		return nil, errors.New("checkout service: cart service is required")
	}
	if deps.Config == nil {
		return nil, errors.New("checkout service: config source is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order repository is required")
	}
	if deps.Clock == nil {
		return nil, errors.New("checkout service: clock is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	prefix := strings.TrimSpace(deps.OrderIDPrefix)
	if prefix == "" {
		prefix = defaultOrderIDPrefix
	}

	service := &checkoutService{
		carts:         deps.Carts,
		config:        deps.Config,
		orders:        deps.Orders,
		now:           func() time.Time { return deps.Clock().UTC() },
		logger:        logger,
		whatsAppPhone: sanitizePhoneDigits(deps.WhatsAppPhone),
		orderIDPrefix: prefix,
		printer:       message.NewPrinter(language.Spanish),
	}
	return service, nil
}

// ValidateCustomer checks the checkout form fields against the current store
// configuration. It returns FieldErrors naming every failed field.
func (s *checkoutService) ValidateCustomer(ctx context.Context, customer CustomerInfo) error {
	if s == nil || s.config == nil {
		return ErrCheckoutUnavailable
	}

	cfg, err := s.config.GetConfig(ctx)
	if err != nil {
		return ErrCheckoutUnavailable
	}
	return validateCustomer(customer, cfg)
}

func validateCustomer(customer CustomerInfo, cfg StoreConfig) error {
	failures := FieldErrors{}

	if strings.TrimSpace(customer.FullName) == "" {
		failures["fullName"] = "el nombre completo es obligatorio"
	}

	phone := sanitizePhoneDigits(customer.Phone)
	if phone == "" {
		failures["phone"] = "el teléfono es obligatorio"
	} else if !cubanPhonePattern.MatchString(phone) {
		failures["phone"] = "el teléfono no es un número cubano válido"
	}

	switch customer.DeliveryMode {
	case domain.DeliveryModePickup:
		// Pickup waives both the address and the zone.
	case domain.DeliveryModeHome:
		if strings.TrimSpace(customer.Address) == "" {
			failures["address"] = "la dirección es obligatoria para entrega a domicilio"
		}
		zone := strings.TrimSpace(customer.Zone)
		if zone == "" {
			failures["zone"] = "debe seleccionar una zona de entrega"
		} else if _, ok := cfg.ZoneCost(zone); !ok {
			failures["zone"] = "la zona de entrega seleccionada no está disponible"
		}
	default:
		failures["deliveryMode"] = "debe seleccionar entrega a domicilio o recogida"
	}

	if len(failures) > 0 {
		return failures
	}
	return nil
}

// ComposeOrder validates the customer, prices the session cart, and archives
// the resulting order together with its rendered confirmation message.
func (s *checkoutService) ComposeOrder(ctx context.Context, cmd ComposeOrderCommand) (CheckoutResult, error) {
	if s == nil || s.carts == nil || s.orders == nil {
		return CheckoutResult{}, ErrCheckoutUnavailable
	}

	sid := strings.TrimSpace(cmd.SessionID)
	if sid == "" {
		return CheckoutResult{}, fmt.Errorf("%w: session id is required", ErrCheckoutInvalidInput)
	}

	cfg, err := s.config.GetConfig(ctx)
	if err != nil {
		return CheckoutResult{}, ErrCheckoutUnavailable
	}
	if err := validateCustomer(cmd.Customer, cfg); err != nil {
		return CheckoutResult{}, err
	}

	cart, err := s.carts.GetCart(ctx, sid)
	if err != nil {
		return CheckoutResult{}, s.translateCartError(err)
	}
	if len(cart.Items) == 0 {
		return CheckoutResult{}, ErrCheckoutEmptyCart
	}

	pricing, err := s.carts.PriceCart(ctx, sid)
	if err != nil {
		return CheckoutResult{}, s.translateCartError(err)
	}

	var deliveryCost int64
	if cmd.Customer.DeliveryMode == domain.DeliveryModeHome {
		cost, ok := cfg.ZoneCost(strings.TrimSpace(cmd.Customer.Zone))
		if !ok {
			return CheckoutResult{}, FieldErrors{"zone": "la zona de entrega seleccionada no está disponible"}
		}
		deliveryCost = cost
	}

	now := s.now()
	order := domain.Order{
		ID:           s.newOrderID(now),
		Customer:     normaliseCustomer(cmd.Customer),
		Items:        cloneCartItems(cart.Items),
		Pricing:      pricing,
		DeliveryCost: deliveryCost,
		GrandTotal:   pricing.CashTotal + pricing.TransferTotal + deliveryCost,
		CreatedAt:    now,
	}

	if err := s.orders.Insert(ctx, order); err != nil {
		s.logger(ctx, "checkout.order_persist_failed", map[string]any{
			"order_id": order.ID,
			"error":    err.Error(),
		})
		return CheckoutResult{}, ErrCheckoutUnavailable
	}

	s.logger(ctx, "checkout.order_composed", map[string]any{
		"order_id":    order.ID,
		"items":       len(order.Items),
		"grand_total": order.GrandTotal,
	})

	if cmd.ClearCart {
		if err := s.carts.ClearCart(ctx, sid); err != nil {
			s.logger(ctx, "checkout.cart_clear_failed", map[string]any{
				"order_id": order.ID,
				"error":    err.Error(),
			})
		}
	}

	rendered := s.renderMessage(order)
	return CheckoutResult{
		Order:       order,
		Message:     rendered,
		WhatsAppURL: s.composerURL(rendered),
	}, nil
}

func (s *checkoutService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrCheckoutUnavailable
	}

	id := strings.TrimSpace(orderID)
	if id == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrCheckoutInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if isRepoNotFound(err) {
			return Order{}, ErrCheckoutOrderNotFound
		}
		return Order{}, ErrCheckoutUnavailable
	}
	return order, nil
}

// newOrderID builds the operator-facing identifier from the prefix and the
// current timestamp. Identifiers are not collision-checked; orders are handed
// to a human operator, not reconciled automatically.
func (s *checkoutService) newOrderID(now time.Time) string {
	return s.orderIDPrefix + strconv.FormatInt(now.UnixMilli(), 10)
}

// renderMessage produces the deterministic operator-facing order text.
func (s *checkoutService) renderMessage(order Order) string {
	var b strings.Builder

	fmt.Fprintf(&b, "NUEVO PEDIDO %s\n", order.ID)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Cliente: %s\n", order.Customer.FullName)
	fmt.Fprintf(&b, "Teléfono: %s\n", order.Customer.Phone)
	if order.Customer.DeliveryMode == domain.DeliveryModePickup {
		b.WriteString("Entrega: recogida en el local\n")
	} else {
		fmt.Fprintf(&b, "Dirección: %s\n", order.Customer.Address)
		fmt.Fprintf(&b, "Zona: %s\n", order.Customer.Zone)
	}
	b.WriteString("\n")

	b.WriteString("Artículos:\n")
	for _, line := range order.Pricing.Items {
		fmt.Fprintf(&b, "- %s (%s", line.Title, kindLabel(line.Key.Kind))
		if line.SeasonCount > 0 {
			fmt.Fprintf(&b, ", %d temporadas", line.SeasonCount)
		}
		if line.ChapterCount > 0 {
			fmt.Fprintf(&b, ", %d capítulos", line.ChapterCount)
		}
		fmt.Fprintf(&b, ") [%s] $%s CUP\n", methodLabel(line.PaymentMethod), s.formatAmount(line.FinalPrice))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Subtotal efectivo: $%s CUP\n", s.formatAmount(order.Pricing.CashTotal))
	fmt.Fprintf(&b, "Subtotal transferencia: $%s CUP\n", s.formatAmount(order.Pricing.TransferTotal))
	fmt.Fprintf(&b, "Envío: $%s CUP\n", s.formatAmount(order.DeliveryCost))
	fmt.Fprintf(&b, "TOTAL: $%s CUP\n", s.formatAmount(order.GrandTotal))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Fecha: %s\n", order.CreatedAt.Format("02/01/2006 15:04"))

	return b.String()
}

func (s *checkoutService) composerURL(text string) string {
	if s.whatsAppPhone == "" {
		return ""
	}
	return "https://wa.me/" + s.whatsAppPhone + "?text=" + url.QueryEscape(text)
}

func (s *checkoutService) formatAmount(amount int64) string {
	return s.printer.Sprintf("%d", amount)
}

func (s *checkoutService) translateCartError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCartInvalidInput):
		return fmt.Errorf("%w: cart rejected the request", ErrCheckoutInvalidInput)
	case errors.Is(err, ErrCartNotFound):
		return ErrCheckoutEmptyCart
	default:
		return ErrCheckoutUnavailable
	}
}

func normaliseCustomer(customer CustomerInfo) CustomerInfo {
	customer.FullName = strings.TrimSpace(customer.FullName)
	customer.Phone = sanitizePhoneDigits(customer.Phone)
	customer.Address = strings.TrimSpace(customer.Address)
	customer.Zone = strings.TrimSpace(customer.Zone)
	if customer.DeliveryMode == domain.DeliveryModePickup {
		customer.Address = ""
		customer.Zone = ""
	}
	return customer
}

// sanitizePhoneDigits strips spaces, dashes, and parentheses, keeping a
// leading plus sign.
func sanitizePhoneDigits(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')':
			continue
		default:
			return strings.TrimSpace(phone)
		}
	}
	return b.String()
}

func kindLabel(kind domain.MediaKind) string {
	switch kind {
	case domain.MediaKindMovie:
		return "película"
	case domain.MediaKindSeries:
		return "serie"
	case domain.MediaKindAnime:
		return "anime"
	case domain.MediaKindNovela:
		return "novela"
	}
	return string(kind)
}

func methodLabel(method domain.PaymentMethod) string {
	if method == domain.PaymentTransfer {
		return "transferencia"
	}
	return "efectivo"
}
