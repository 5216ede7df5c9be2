package integration

import (
	"net/http"
	"testing"

	"github.com/lunahq/posada/internal/crud"
)

func TestResourceIndex(t *testing.T) {
	h := NewTestHarness(t)
	token := GenerateToken(t, ClientClaims())

	var body struct {
		Resources []struct {
			Collection string `json:"collection"`
			Title      string `json:"title"`
		} `json:"resources"`
	}
	h.AssertJSON(t, h.GET("/ui/resources", token), http.StatusOK, &body)

	if len(body.Resources) != 7 {
		t.Fatalf("resources = %d, want 7", len(body.Resources))
	}
	found := map[string]bool{}
	for _, r := range body.Resources {
		found[r.Collection] = true
	}
	for _, want := range []string{"hoteles", "habitaciones", "servicios-adicionales", "reservas"} {
		if !found[want] {
			t.Errorf("collection %q missing from index", want)
		}
	}
}

func TestResourceRefreshAndView(t *testing.T) {
	h := NewTestHarness(t)
	h.Backend.Seed("hoteles",
		HotelFixture("h1", "Hotel Andino", 3),
		HotelFixture("h2", "Hotel Costero", 1),
	)
	admin := GenerateToken(t, AdminClaims())

	var view crud.View
	h.AssertJSON(t, h.POST("/ui/resources/hoteles/refresh", nil, admin), http.StatusOK, &view)

	if view.State != crud.StateLoaded {
		t.Fatalf("state = %q", view.State)
	}
	if len(view.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(view.Rows))
	}
	if view.Rows[0].ID != "h1" {
		t.Errorf("first row id = %q", view.Rows[0].ID)
	}

	// The view endpoint reflects the refreshed state without another fetch.
	listCalls := h.Backend.RequestCount(http.MethodGet, "/hoteles")
	var again crud.View
	h.AssertJSON(t, h.GET("/ui/resources/hoteles", GenerateToken(t, ClientClaims())), http.StatusOK, &again)
	if len(again.Rows) != 2 {
		t.Errorf("rows after view = %d, want 2", len(again.Rows))
	}
	if got := h.Backend.RequestCount(http.MethodGet, "/hoteles"); got != listCalls {
		t.Errorf("view triggered %d extra backend calls", got-listCalls)
	}
}

func TestUnknownCollection(t *testing.T) {
	h := NewTestHarness(t)
	token := GenerateToken(t, ClientClaims())

	resp := h.GET("/ui/resources/naves-espaciales", token)
	h.AssertStatus(t, resp, http.StatusNotFound)
}

func TestCreateHotelForcesRoomCountToZero(t *testing.T) {
	h := NewTestHarness(t)
	admin := GenerateToken(t, AdminClaims())

	for field, value := range map[string]string{
		"nombreHotel": "Hotel Nuevo",
		"ciudad":      "Cusco",
	} {
		resp := h.POST("/ui/resources/hoteles/form",
			map[string]string{"field": field, "value": value}, admin)
		h.AssertStatus(t, resp, http.StatusOK)
	}

	var view crud.View
	h.AssertJSON(t, h.POST("/ui/resources/hoteles/submit", nil, admin), http.StatusOK, &view)

	if view.Message != "Record created" {
		t.Errorf("message = %q", view.Message)
	}
	if len(view.Form) != 0 {
		t.Errorf("form not reset: %v", view.Form)
	}

	sent := h.Backend.LastRequest(http.MethodPost, "/hoteles")
	if sent == nil {
		t.Fatal("no create reached the backend")
	}
	if got := sent.Body["numeroHabitaciones"]; got != float64(0) {
		t.Errorf("numeroHabitaciones = %v, want 0", got)
	}
	if got := sent.Body["nombreHotel"]; got != "Hotel Nuevo" {
		t.Errorf("nombreHotel = %v", got)
	}
}

func TestSubmitValidationFailure(t *testing.T) {
	h := NewTestHarness(t)
	admin := GenerateToken(t, AdminClaims())

	resp := h.POST("/ui/resources/hoteles/submit", nil, admin)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		Error struct {
			Details []struct {
				Field string `json:"field"`
			} `json:"details"`
		} `json:"error"`
	}
	h.ParseJSON(resp, &body)

	fields := map[string]bool{}
	for _, d := range body.Error.Details {
		fields[d.Field] = true
	}
	if !fields["nombreHotel"] || !fields["ciudad"] {
		t.Errorf("details = %+v, want nombreHotel and ciudad", body.Error.Details)
	}
	if h.Backend.RequestCount(http.MethodPost, "/hoteles") != 0 {
		t.Error("invalid submit reached the backend")
	}
}

func TestCreateRoomIncrementsHotelCount(t *testing.T) {
	h := NewTestHarness(t)
	h.Backend.Seed("hoteles", HotelFixture("h1", "Hotel Andino", 2))
	admin := GenerateToken(t, AdminClaims())

	for field, value := range map[string]string{
		"idHotel":          "h1",
		"codigoHabitacion": "HAB-301",
		"tipoHabitacion":   "Doble",
		"precioNoche":      "150",
	} {
		resp := h.POST("/ui/resources/habitaciones/form",
			map[string]string{"field": field, "value": value}, admin)
		h.AssertStatus(t, resp, http.StatusOK)
	}

	var view crud.View
	h.AssertJSON(t, h.POST("/ui/resources/habitaciones/submit", nil, admin), http.StatusOK, &view)
	if view.Message != "Record created" {
		t.Errorf("message = %q", view.Message)
	}

	hotel := h.Backend.Record("hoteles", "h1")
	if hotel == nil {
		t.Fatal("hotel disappeared")
	}
	if got := hotel["numeroHabitaciones"]; got != float64(3) {
		t.Errorf("numeroHabitaciones = %v, want 3", got)
	}
}

func TestRemoveRoomSoftDeletes(t *testing.T) {
	h := NewTestHarness(t)
	h.Backend.Seed("hoteles", HotelFixture("h1", "Hotel Andino", 2))
	h.Backend.Seed("habitaciones", RoomFixture("r1", "h1", 120))
	admin := GenerateToken(t, AdminClaims())

	h.AssertStatus(t, h.POST("/ui/resources/habitaciones/refresh", nil, admin), http.StatusOK)

	var view crud.View
	h.AssertJSON(t, h.DELETE("/ui/resources/habitaciones/r1", admin), http.StatusOK, &view)

	// No hard delete: the room survives with an inactive state.
	if h.Backend.RequestCount(http.MethodDelete, "/habitaciones") != 0 {
		t.Error("room was hard-deleted")
	}
	room := h.Backend.Record("habitaciones", "r1")
	if room == nil {
		t.Fatal("room record gone")
	}
	if got := room["estado"]; got != "Inactivo" {
		t.Errorf("estado = %v", got)
	}

	hotel := h.Backend.Record("hoteles", "h1")
	if got := hotel["numeroHabitaciones"]; got != float64(1) {
		t.Errorf("numeroHabitaciones = %v, want 1", got)
	}
}

func TestEditAndUpdateHotel(t *testing.T) {
	h := NewTestHarness(t)
	h.Backend.Seed("hoteles", HotelFixture("h1", "Hotel Andino", 2))
	admin := GenerateToken(t, AdminClaims())

	h.AssertStatus(t, h.POST("/ui/resources/hoteles/refresh", nil, admin), http.StatusOK)

	var view crud.View
	h.AssertJSON(t, h.POST("/ui/resources/hoteles/edit/h1", nil, admin), http.StatusOK, &view)
	if view.EditingID != "h1" {
		t.Fatalf("editing_id = %q", view.EditingID)
	}
	if view.Form["nombreHotel"] != "Hotel Andino" {
		t.Errorf("form nombreHotel = %q", view.Form["nombreHotel"])
	}

	resp := h.POST("/ui/resources/hoteles/form",
		map[string]string{"field": "nombreHotel", "value": "Hotel Renovado"}, admin)
	h.AssertStatus(t, resp, http.StatusOK)

	h.AssertJSON(t, h.POST("/ui/resources/hoteles/submit", nil, admin), http.StatusOK, &view)
	if view.Message != "Record updated" {
		t.Errorf("message = %q", view.Message)
	}

	sent := h.Backend.LastRequest(http.MethodPut, "/hoteles/h1")
	if sent == nil {
		t.Fatal("no update reached the backend")
	}
	if got := sent.Body["nombreHotel"]; got != "Hotel Renovado" {
		t.Errorf("nombreHotel = %v", got)
	}
}

func TestSearchByID(t *testing.T) {
	h := NewTestHarness(t)
	h.Backend.Seed("hoteles", HotelFixture("h1", "Hotel Andino", 2))
	token := GenerateToken(t, ClientClaims())

	var view crud.View
	h.AssertJSON(t, h.GET("/ui/resources/hoteles/search/h1", token), http.StatusOK, &view)
	if view.Search == nil || view.Search.Error != "" {
		t.Fatalf("search = %+v", view.Search)
	}
	if view.Search.Record["nombreHotel"] != "Hotel Andino" {
		t.Errorf("record = %v", view.Search.Record)
	}

	h.AssertJSON(t, h.GET("/ui/resources/hoteles/search/missing", token), http.StatusOK, &view)
	if view.Search == nil || view.Search.Error == "" {
		t.Fatalf("expected a search error, got %+v", view.Search)
	}
	if view.Search.Record != nil {
		t.Errorf("stale record kept: %v", view.Search.Record)
	}
}
