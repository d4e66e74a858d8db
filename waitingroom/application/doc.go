// Package application contém os casos de uso da sala de espera: emissão de
// tokens e admissão (AdmissionController), compra (PurchaseLedger), estado da
// sale (SaleService), catálogo precificado (CatalogService) e os guardas de
// tráfego (ThrottleService, PurchaseSlots).
//
// Depende apenas de domain e não conhece net/http.
// Ex.: AdmissionController.Status nunca falha; devolve uma QueueStatus que o
// adaptador HTTP só traduz para JSON.
package application
