package main

import "net/http"

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", app.healthCheck)
	mux.HandleFunc("POST /api/payments", app.createPayment)
	mux.HandleFunc("GET /api/payments", app.listPayments)
	mux.HandleFunc("GET /api/payers/{payerId}/balance", app.getPayerBalance)
	mux.HandleFunc("GET /admin/queues", app.getQueueStats)

	return app.logRequest(mux)
}
