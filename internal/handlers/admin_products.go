package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/csrf"

	"github.com/marilagman/petalsandcrumbs/internal/models"
)

var validProductStatuses = map[string]bool{"available": true, "out_of_stock": true, "archived": true}
var validCategories = map[string]bool{"cakes": true, "flowers": true}

func (h *AdminHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Store.GetAllProducts()
	if err != nil {
		http.Error(w, "Error fetching products", http.StatusInternalServerError)
		return
	}

	tmpl := h.Templates.Get("admin_products.html")
	if tmpl == nil {
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}
	session, _ := h.SessionStore.Get(r, "admin-session")
	data := map[string]interface{}{
		"Products":  products,
		"CsrfField": csrf.TemplateField(r),
		"Flashes":   GetFlash(session),
	}
	session.Save(r, w)
	tmpl.Execute(w, data)
}

func (h *AdminHandler) AddProductForm(w http.ResponseWriter, r *http.Request) {
	tmpl := h.Templates.Get("admin_add_product.html")
	if tmpl == nil {
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}
	session, _ := h.SessionStore.Get(r, "admin-session")
	data := map[string]interface{}{
		"CsrfField": csrf.TemplateField(r),
		"Flashes":   GetFlash(session),
	}
	session.Save(r, w)
	tmpl.Execute(w, data)
}

func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	session, _ := h.SessionStore.Get(r, "admin-session")
	defer session.Save(r, w)

	if err := r.ParseMultipartForm(10 << 20); err != nil { // 10MB
		session.AddFlash(FlashMessage{Type: "error", Message: "File too large. Max 10MB."})
		http.Redirect(w, r, "/admin/products/new", http.StatusSeeOther)
		return
	}

	title := r.FormValue("title")
	desc := r.FormValue("description")
	priceStr := r.FormValue("price")
	category := r.FormValue("category")
	status := r.FormValue("status")
	if status == "" {
		status = "available"
	}
	if category == "" {
		category = "flowers"
	}

	// Validation
	errs := make(map[string]string)
	if title == "" {
		errs["title"] = "Title is required."
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		errs["price"] = "Invalid price format."
	} else if price <= 0 {
		errs["price"] = "Price must be positive."
	}
	if !validProductStatuses[status] {
		errs["status"] = "Invalid status selected."
	}
	if !validCategories[category] {
		errs["category"] = "Invalid category selected."
	}
	if _, _, fileErr := r.FormFile("image"); fileErr != nil {
		errs["image"] = "Image file is required."
	}

	if len(errs) > 0 {
		for _, msg := range errs {
			session.AddFlash(FlashMessage{Type: "error", Message: msg})
		}
		http.Redirect(w, r, "/admin/products/new", http.StatusSeeOther)
		return
	}

	imageURL, err := saveUploadedImage(r, "image")
	if err != nil {
		if err == errUnsupportedImage {
			session.AddFlash(FlashMessage{Type: "error", Message: "Unsupported image format. Only PNG, JPG, JPEG are allowed."})
		} else {
			session.AddFlash(FlashMessage{Type: "error", Message: "Error saving image file."})
		}
		http.Redirect(w, r, "/admin/products/new", http.StatusSeeOther)
		return
	}

	product := &models.Product{
		Title:       title,
		Description: desc,
		Price:       price,
		Category:    category,
		ImageURL:    imageURL,
		Status:      status,
	}

	if err := h.Store.CreateProduct(product); err != nil {
		session.AddFlash(FlashMessage{Type: "error", Message: "Error saving product to database."})
		http.Redirect(w, r, "/admin/products/new", http.StatusSeeOther)
		return
	}

	session.AddFlash(FlashMessage{Type: "success", Message: "Product added successfully!"})
	http.Redirect(w, r, "/admin/products", http.StatusSeeOther)
}

func (h *AdminHandler) EditProductForm(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "Invalid Product ID", http.StatusBadRequest)
		return
	}
	product, err := h.Store.GetProductByID(id)
	if err != nil {
		http.Error(w, "Product not found", http.StatusNotFound)
		return
	}

	tmpl := h.Templates.Get("admin_edit_product.html")
	if tmpl == nil {
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}
	session, _ := h.SessionStore.Get(r, "admin-session")
	data := map[string]interface{}{
		"Product":   product,
		"CsrfField": csrf.TemplateField(r),
		"Flashes":   GetFlash(session),
	}
	session.Save(r, w)
	tmpl.Execute(w, data)
}

func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	session, _ := h.SessionStore.Get(r, "admin-session")
	defer session.Save(r, w)

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		session.AddFlash(FlashMessage{Type: "error", Message: "File too large. Max 10MB."})
		http.Redirect(w, r, "/admin/products", http.StatusSeeOther)
		return
	}

	id, err := strconv.Atoi(r.FormValue("id"))
	if err != nil {
		session.AddFlash(FlashMessage{Type: "error", Message: "Invalid product ID."})
		http.Redirect(w, r, "/admin/products", http.StatusSeeOther)
		return
	}
	existing, err := h.Store.GetProductByID(id)
	if err != nil {
		session.AddFlash(FlashMessage{Type: "error", Message: "Product not found."})
		http.Redirect(w, r, "/admin/products", http.StatusSeeOther)
		return
	}

	price, err := strconv.ParseFloat(r.FormValue("price"), 64)
	if err != nil || price <= 0 {
		session.AddFlash(FlashMessage{Type: "error", Message: "Price must be a positive number."})
		http.Redirect(w, r, "/admin/products", http.StatusSeeOther)
		return
	}

	existing.Title = r.FormValue("title")
	existing.Description = r.FormValue("description")
	existing.Price = price
	if category := r.FormValue("category"); validCategories[category] {
		existing.Category = category
	}
	if status := r.FormValue("status"); validProductStatuses[status] {
		existing.Status = status
	}

	// Image replacement is optional on edit
	if _, _, fileErr := r.FormFile("image"); fileErr == nil {
		imageURL, err := saveUploadedImage(r, "image")
		if err != nil {
			session.AddFlash(FlashMessage{Type: "error", Message: "Could not save new image."})
			http.Redirect(w, r, "/admin/products", http.StatusSeeOther)
			return
		}
		existing.ImageURL = imageURL
	}

	if err := h.Store.UpdateProduct(existing); err != nil {
		session.AddFlash(FlashMessage{Type: "error", Message: "Error updating product."})
		http.Redirect(w, r, "/admin/products", http.StatusSeeOther)
		return
	}
	session.AddFlash(FlashMessage{Type: "success", Message: "Product updated!"})
	http.Redirect(w, r, "/admin/products", http.StatusSeeOther)
}

func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	session, _ := h.SessionStore.Get(r, "admin-session")
	defer session.Save(r, w)

	id, err := strconv.Atoi(r.FormValue("id"))
	if err != nil {
		session.AddFlash(FlashMessage{Type: "error", Message: "Invalid ID."})
		http.Redirect(w, r, "/admin/products", http.StatusSeeOther)
		return
	}

	if err := h.Store.DeleteProduct(id); err != nil {
		session.AddFlash(FlashMessage{Type: "error", Message: "Error deleting product."})
		http.Redirect(w, r, "/admin/products", http.StatusSeeOther)
		return
	}

	session.AddFlash(FlashMessage{Type: "success", Message: "Product deleted successfully!"})
	http.Redirect(w, r, "/admin/products", http.StatusSeeOther)
}
