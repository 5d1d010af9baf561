package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/adambom/sfbaysim/latlon"
	"github.com/adambom/sfbaysim/sim"
	"github.com/adambom/sfbaysim/store"
)

type server struct {
	fields *store.Store
	sim    *sim.Simulator
}

// InitServer builds the HTTP surface over the field store and simulator.
func InitServer(fields *store.Store, s *sim.Simulator) *mux.Router {

	router := mux.NewRouter().StrictSlash(true)

	srv := server{fields: fields, sim: s}

	router.HandleFunc("/sfbay/-/healthz", srv.healthz).Methods(http.MethodGet)

	apiV1 := router.PathPrefix("/sfbay/api/v1").Subrouter()
	apiV1.HandleFunc("/field/{source}/sample", srv.sampleField).Methods(http.MethodGet)
	apiV1.HandleFunc("/progress", srv.progress).Methods(http.MethodGet)
	apiV1.HandleFunc("/boats", srv.boats).Methods(http.MethodGet)
	apiV1.HandleFunc("/boats/{id}", srv.boat).Methods(http.MethodGet)
	apiV1.HandleFunc("/boats/{id}/heading", srv.heading).Methods(http.MethodPost)
	apiV1.HandleFunc("/boats/{id}/tack", srv.tack).Methods(http.MethodPost)
	apiV1.HandleFunc("/boats/{id}/gybe", srv.gybe).Methods(http.MethodPost)
	apiV1.HandleFunc("/boats/{id}/autonomous", srv.autonomous).Methods(http.MethodPost)
	apiV1.HandleFunc("/boats/{id}/router/cycle", srv.cycleRouter).Methods(http.MethodPost)
	apiV1.HandleFunc("/marks", srv.dropMark).Methods(http.MethodPost)
	apiV1.HandleFunc("/marks", srv.clearMarks).Methods(http.MethodDelete)
	apiV1.HandleFunc("/marks", srv.marks).Methods(http.MethodGet)
	apiV1.HandleFunc("/reset", srv.reset).Methods(http.MethodPost)
	apiV1.HandleFunc("/speed", srv.speed).Methods(http.MethodPost)

	return router
}

func (s *server) healthz(w http.ResponseWriter, r *http.Request) {
	type health struct {
		Status string `json:"status"`
	}

	json.NewEncoder(w).Encode(health{Status: "Ok"})
}

// sampleField serves the display-sampling boundary: the rendering layer
// draws vector overlays from it without duplicating interpolation.
func (s *server) sampleField(w http.ResponseWriter, r *http.Request) {
	source := store.Source(mux.Vars(r)["source"])

	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	valid := false
	for _, known := range store.Sources {
		if source == known {
			valid = true
		}
	}
	if !valid {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	type sampleResult struct {
		U       float64 `json:"u"`
		V       float64 `json:"v"`
		DirDeg  float64 `json:"dir_deg"`
		Knots   float64 `json:"knots"`
		HasData bool    `json:"has_data"`
	}

	p := latlon.LatLon{Lat: lat, Lon: lon}
	v, ok := s.fields.SampleForDisplay(source, p, s.sim.SimTime())
	res := sampleResult{HasData: ok}
	if ok {
		res.U = v.U
		res.V = v.V
		res.DirDeg = v.DirectionFrom()
		res.Knots = v.Knots()
	}
	json.NewEncoder(w).Encode(res)
}

func (s *server) progress(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(s.fields.Progress())
}

func (s *server) boats(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(s.sim.Boats())
}

func (s *server) boat(w http.ResponseWriter, r *http.Request) {
	b, err := s.sim.Boat(mux.Vars(r)["id"])
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(b)
}

func (s *server) heading(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body struct {
		Delta   *float64 `json:"delta"`
		Heading *float64 `json:"heading"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var err error
	switch {
	case body.Heading != nil:
		err = s.sim.SetHeading(id, *body.Heading)
	case body.Delta != nil:
		err = s.sim.AdjustHeading(id, *body.Delta)
	default:
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	s.writeBoat(w, id)
}

func (s *server) tack(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.sim.Tack(id); err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	s.writeBoat(w, id)
}

func (s *server) gybe(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.sim.Gybe(id); err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	s.writeBoat(w, id)
}

func (s *server) autonomous(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := s.sim.SetAutonomous(id, body.Enabled); err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	s.writeBoat(w, id)
}

func (s *server) cycleRouter(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	name, err := s.sim.CycleRouter(id)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	type routerResult struct {
		Router string `json:"router"`
	}
	json.NewEncoder(w).Encode(routerResult{Router: name})
}

func (s *server) dropMark(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
		Name    string  `json:"name"`
		RadiusM float64 `json:"radius_m"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	mark := s.sim.DropMark(latlon.LatLon{Lat: body.Lat, Lon: body.Lon}, body.Name, body.RadiusM)
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(mark)
}

func (s *server) clearMarks(w http.ResponseWriter, r *http.Request) {
	s.sim.ClearMarks()
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) marks(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(s.sim.Marks())
}

func (s *server) reset(w http.ResponseWriter, r *http.Request) {
	s.sim.ResetToStart()
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) speed(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := s.sim.SetSpeedIndex(body.Index); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	type speedResult struct {
		Index      int     `json:"index"`
		Multiplier float64 `json:"multiplier"`
	}
	json.NewEncoder(w).Encode(speedResult{Index: body.Index, Multiplier: sim.SpeedMultipliers[body.Index]})
}

func (s *server) writeBoat(w http.ResponseWriter, id string) {
	b, err := s.sim.Boat(id)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(b)
}

// Run blocks serving the API until the listener fails.
func Run(addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	log.Infof("Start listening on %s", addr)
	return srv.ListenAndServe()
}
