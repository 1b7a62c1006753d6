// Package gatewaytest runs an in-memory storefront API for tests. It
// follows the reference server's behavior: one cart line per add unless
// MergeLines is set, stock decremented on add and restored on remove,
// orders built from the cart which is then emptied.
package gatewaytest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"github.com/joss/storefront/internal/domain"
)

// Route names accepted by Fail, Block, Override and Hits.
const (
	RouteProducts    = "products"
	RouteLogin       = "login"
	RouteRegister    = "register"
	RouteCart        = "cart"
	RouteAdd         = "add"
	RouteRemove      = "remove"
	RouteOrders      = "orders"
	RouteCreateOrder = "create_order"
)

type user struct {
	fullName string
	email    string
	password string
	token    string
}

type failure struct {
	status  int
	message string
}

// Server is a fake storefront API.
type Server struct {
	*httptest.Server

	// MergeLines makes repeated adds of a product grow one line instead of
	// creating a new line per add.
	MergeLines bool

	mu        sync.Mutex
	products  []domain.Product
	users     map[string]*user
	byToken   map[string]*user
	carts     map[string][]domain.CartItem
	orders    map[string][]domain.Order
	failures  map[string]failure
	gates     map[string]chan struct{}
	overrides map[string]http.HandlerFunc
	hits      map[string]int
	seq       int
}

// New starts a Server. It is closed with t.Cleanup by the caller or Close.
func New() *Server {
	s := &Server{
		users:     make(map[string]*user),
		byToken:   make(map[string]*user),
		carts:     make(map[string][]domain.CartItem),
		orders:    make(map[string][]domain.Order),
		failures:  make(map[string]failure),
		gates:     make(map[string]chan struct{}),
		overrides: make(map[string]http.HandlerFunc),
		hits:      make(map[string]int),
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/get-products", s.route(RouteProducts, s.handleProducts)).Methods(http.MethodGet)
	api.HandleFunc("/auth/login", s.route(RouteLogin, s.handleLogin)).Methods(http.MethodPost)
	api.HandleFunc("/auth/register", s.route(RouteRegister, s.handleRegister)).Methods(http.MethodPost)
	api.HandleFunc("/get-cart-items", s.route(RouteCart, s.authed(s.handleCart))).Methods(http.MethodGet)
	api.HandleFunc("/cart", s.route(RouteAdd, s.authed(s.handleAdd))).Methods(http.MethodPost)
	api.HandleFunc("/cart/{productId}", s.route(RouteRemove, s.authed(s.handleRemove))).Methods(http.MethodDelete)
	api.HandleFunc("/orders", s.route(RouteOrders, s.authed(s.handleOrders))).Methods(http.MethodGet)
	api.HandleFunc("/orders", s.route(RouteCreateOrder, s.authed(s.handleCreateOrder))).Methods(http.MethodPost)

	s.Server = httptest.NewServer(r)
	return s
}

// AddProduct registers a catalog entry.
func (s *Server) AddProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = append(s.products, p)
}

// Product returns the current catalog entry for id.
func (s *Server) Product(id string) (domain.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.product(id); p != nil {
		return *p, true
	}
	return domain.Product{}, false
}

// AddUser registers an account and returns its bearer token.
func (s *Server) AddUser(fullName, email, password string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUser(fullName, email, password).token
}

// SetCart replaces the cart owned by token.
func (s *Server) SetCart(token string, items []domain.CartItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[token] = append([]domain.CartItem(nil), items...)
}

// Cart returns the cart owned by token.
func (s *Server) Cart(token string) []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CartItem(nil), s.carts[token]...)
}

// Fail makes route answer status until Clear. An empty message sends an
// empty JSON object so clients fall back to their default text.
func (s *Server) Fail(route string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = failure{status: status, message: message}
}

// Clear removes a failure set by Fail.
func (s *Server) Clear(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, route)
}

// Block holds requests to route until the returned release is called.
func (s *Server) Block(route string) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gates[route] = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.gates, route)
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Override replaces the handler for route.
func (s *Server) Override(route string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[route] = h
}

// Hits returns how many requests reached route.
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

func (s *Server) route(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[name]++
		gate := s.gates[name]
		s.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}

		s.mu.Lock()
		f, failing := s.failures[name]
		override := s.overrides[name]
		s.mu.Unlock()

		switch {
		case failing && f.message != "":
			writeJSON(w, f.status, map[string]string{"message": f.message})
		case failing:
			writeJSON(w, f.status, struct{}{})
		case override != nil:
			override(w, r)
		default:
			next(w, r)
		}
	}
}

type authedHandler func(w http.ResponseWriter, r *http.Request, u *user)

func (s *Server) authed(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		u := s.byToken[token]
		s.mu.Unlock()
		if token == "" || u == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		next(w, r, u)
	}
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := append([]domain.Product{}, s.products...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.Login
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid request"})
		return
	}

	s.mu.Lock()
	u := s.users[req.Email]
	s.mu.Unlock()
	if u == nil || u.password != req.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid email or password"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": u.token, "fullName": u.fullName})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req domain.Registration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[req.Email]; exists {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "User already exists"})
		return
	}
	s.addUser(req.FullName, req.Email, req.Password)
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

func (s *Server) handleCart(w http.ResponseWriter, r *http.Request, u *user) {
	s.mu.Lock()
	items := s.populated(s.carts[u.token])
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"cartItems": items})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request, u *user) {
	var req struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid quantity"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.product(req.ProductID)
	if p == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Product not found"})
		return
	}
	if p.Stock < req.Quantity {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Insufficient stock"})
		return
	}
	p.Stock -= req.Quantity

	cart := s.carts[u.token]
	if s.MergeLines {
		for i := range cart {
			if cart[i].Product.ID == p.ID {
				cart[i].Quantity += req.Quantity
				cart[i].Product = *p
				writeJSON(w, http.StatusCreated, cart[i])
				return
			}
		}
	}

	s.seq++
	line := domain.CartItem{
		ID:       fmt.Sprintf("line-%d", s.seq),
		UserID:   u.email,
		Product:  *p,
		Quantity: req.Quantity,
	}
	s.carts[u.token] = append(cart, line)
	writeJSON(w, http.StatusCreated, line)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request, u *user) {
	productID := mux.Vars(r)["productId"]

	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.carts[u.token]
	kept := cart[:0:0]
	removed := 0
	for _, it := range cart {
		if it.Product.ID == productID {
			removed += it.Quantity
			continue
		}
		kept = append(kept, it)
	}
	if removed == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Item not found in cart"})
		return
	}
	if p := s.product(productID); p != nil {
		p.Stock += removed
	}
	s.carts[u.token] = kept
	writeJSON(w, http.StatusOK, map[string]string{"message": "Item removed from cart"})
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request, u *user) {
	s.mu.Lock()
	out := append([]domain.Order{}, s.orders[u.token]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request, u *user) {
	var req struct {
		ShippingAddress string `json:"shippingAddress"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.ShippingAddress) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Shipping address is required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.populated(s.carts[u.token])
	if len(cart) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Cart is empty"})
		return
	}

	s.seq++
	order := domain.Order{
		ID:              fmt.Sprintf("order-%d", s.seq),
		UserID:          u.email,
		ShippingAddress: req.ShippingAddress,
		PaymentStatus:   "Pending",
		OrderStatus:     "Processing",
	}
	for _, it := range cart {
		order.Products = append(order.Products, domain.OrderLine{
			ID:       it.ID,
			Product:  it.Product,
			Quantity: it.Quantity,
			Price:    it.Product.UnitPrice,
		})
		order.TotalPrice += it.LineTotal()
	}
	s.orders[u.token] = append(s.orders[u.token], order)
	s.carts[u.token] = nil
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) addUser(fullName, email, password string) *user {
	s.seq++
	u := &user{
		fullName: fullName,
		email:    email,
		password: password,
		token:    fmt.Sprintf("token-%d", s.seq),
	}
	s.users[email] = u
	s.byToken[u.token] = u
	return u
}

func (s *Server) product(id string) *domain.Product {
	for i := range s.products {
		if s.products[i].ID == id {
			return &s.products[i]
		}
	}
	return nil
}

// populated refreshes each line's product from the catalog.
func (s *Server) populated(items []domain.CartItem) []domain.CartItem {
	out := make([]domain.CartItem, 0, len(items))
	for _, it := range items {
		if p := s.product(it.Product.ID); p != nil {
			it.Product = *p
		}
		out = append(out, it)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
