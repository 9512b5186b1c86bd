// Copyright (C) 2025 Mercado Labs (oss@mercadolabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package catalog

func dateParams() []ParamSpec {
	return []ParamSpec{
		{Name: "fecha_inicio", Kind: ParamDateStart, Description: "Fecha inicial, formato 'YYYY-MM-DD'"},
		{Name: "fecha_fin", Kind: ParamDateEnd, Description: "Fecha final, formato 'YYYY-MM-DD'"},
	}
}

func dateParamsWithTopN(defaultN int) []ParamSpec {
	return append([]ParamSpec{
		{Name: "top_n", Kind: ParamInt, Description: "Cantidad de resultados a devolver", Default: defaultN},
	}, dateParams()...)
}

// buildReports declares the full catalog. Column aliases and ordering
// mirror what the reporting dashboards already consume, so they are part
// of the contract.
func buildReports() []ReportDefinition {
	return []ReportDefinition{
		// ---- Ventas e ingresos ----
		{
			Name:        "sales_by_date",
			Description: "Total de ventas agrupadas por fecha: transacciones, ingresos y promedio por día.",
			Params:      dateParams(),
			Query: `
    SELECT
        f.fecha,
        COUNT(f.id) as cantidad_transacciones,
        SUM(f.importe_total) as total_ingresos,
        AVG(f.importe_total) as promedio_venta
    FROM facturas f
    WHERE f.fecha BETWEEN :fecha_inicio AND :fecha_fin
    GROUP BY f.fecha
    ORDER BY f.fecha DESC`,
		},
		{
			Name:        "sales_by_employee",
			Description: "Total de ventas por empleado (cajero/repositor): cantidad de ventas e ingresos.",
			Params:      dateParams(),
			Query: `
    SELECT
        e.nombre,
        e.apellido,
        e.cargo,
        COUNT(v.id) as cantidad_ventas,
        SUM(f.importe_total) as total_vendido,
        AVG(f.importe_total) as promedio_venta
    FROM empleados e
    LEFT JOIN ventas v ON e.id = v.id_empleado
    LEFT JOIN facturas f ON v.id_factura = f.id
    WHERE f.fecha BETWEEN :fecha_inicio AND :fecha_fin OR f.fecha IS NULL
    GROUP BY e.id, e.nombre, e.apellido, e.cargo
    ORDER BY total_vendido DESC NULLS LAST`,
		},
		{
			Name:        "sales_by_payment_method",
			Description: "Ingresos por tipo de pago (Efectivo, Tarjeta Crédito, Tarjeta Débito, Cheque).",
			Params:      dateParams(),
			Query: `
    SELECT
        fd.medio_de_pago,
        COUNT(f.id) as cantidad_transacciones,
        SUM(f.importe_total) as total_ingresos,
        ROUND(100.0 * SUM(f.importe_total) / (SELECT SUM(importe_total) FROM facturas WHERE fecha BETWEEN :fecha_inicio AND :fecha_fin), 2) as porcentaje
    FROM facturas f
    JOIN facturas_detalles fd ON f.id = fd.id_factura
    WHERE f.fecha BETWEEN :fecha_inicio AND :fecha_fin
    GROUP BY fd.medio_de_pago
    ORDER BY total_ingresos DESC`,
		},
		{
			Name:        "average_transaction_value",
			Description: "Promedio, mínimo y máximo del valor de transacción en el período.",
			Params:      dateParams(),
			Query: `
    SELECT
        COUNT(id) as total_transacciones,
        ROUND(AVG(importe_total), 2) as promedio,
        MIN(importe_total) as minimo,
        MAX(importe_total) as maximo,
        SUM(importe_total) as total_ingresos
    FROM facturas
    WHERE fecha BETWEEN :fecha_inicio AND :fecha_fin`,
		},
		{
			Name:        "top_employees_by_sales",
			Description: "Top N empleados con más ingresos generados.",
			Params:      dateParamsWithTopN(5),
			Query: `
    SELECT
        e.nombre,
        e.apellido,
        e.cargo,
        COUNT(v.id) as cantidad_ventas,
        SUM(f.importe_total) as total_vendido
    FROM empleados e
    JOIN ventas v ON e.id = v.id_empleado
    JOIN facturas f ON v.id_factura = f.id
    WHERE f.fecha BETWEEN :fecha_inicio AND :fecha_fin
    GROUP BY e.id, e.nombre, e.apellido, e.cargo
    ORDER BY total_vendido DESC
    LIMIT :top_n`,
		},

		// ---- Productos e inventario ----
		{
			Name:        "top_products_by_quantity",
			Description: "Top N productos más vendidos por cantidad de unidades.",
			Params:      dateParamsWithTopN(10),
			Query: `
    SELECT
        p.id,
        p.nombre,
        p.marca,
        p.grupo,
        COALESCE(SUM(vp.cantidad), 0) as cantidad_vendida,
        p.stock as stock_actual,
        p.precio_unidad,
        ROUND(COALESCE(SUM(vp.cantidad), 0) * p.precio_unidad, 2) as ingresos_totales
    FROM productos p
    LEFT JOIN ventas_productos vp ON p.id = vp.id_producto
    LEFT JOIN ventas v ON vp.id_venta = v.id
    LEFT JOIN facturas f ON v.id_factura = f.id AND f.fecha BETWEEN :fecha_inicio AND :fecha_fin
    GROUP BY p.id, p.nombre, p.marca, p.grupo, p.stock, p.precio_unidad
    ORDER BY cantidad_vendida DESC, p.nombre ASC
    LIMIT :top_n`,
		},
		{
			Name:        "revenue_by_product_category",
			Description: "Ingresos totales por categoría (grupo) de productos, con porcentaje sobre el total.",
			Params:      dateParams(),
			Query: `
    SELECT
        p.grupo as categoria,
        p.tipo,
        SUM(vp.cantidad) as cantidad_vendida,
        ROUND(SUM(vp.cantidad * p.precio_unidad), 2) as ingresos_totales,
        ROUND(100.0 * SUM(vp.cantidad * p.precio_unidad) /
            (SELECT SUM(vp2.cantidad * p2.precio_unidad)
             FROM ventas_productos vp2
             JOIN productos p2 ON vp2.id_producto = p2.id
             JOIN ventas v2 ON vp2.id_venta = v2.id
             JOIN facturas f2 ON v2.id_factura = f2.id
             WHERE f2.fecha BETWEEN :fecha_inicio AND :fecha_fin), 2) as porcentaje
    FROM productos p
    JOIN ventas_productos vp ON p.id = vp.id_producto
    JOIN ventas v ON vp.id_venta = v.id
    JOIN facturas f ON v.id_factura = f.id
    WHERE f.fecha BETWEEN :fecha_inicio AND :fecha_fin
    GROUP BY p.grupo, p.tipo
    ORDER BY ingresos_totales DESC`,
		},
		{
			Name:        "low_stock_products",
			Description: "Productos con stock por debajo del umbral indicado.",
			Params: []ParamSpec{
				{Name: "threshold", Kind: ParamInt, Description: "Nivel mínimo de stock", Default: 100},
			},
			Query: `
    SELECT
        id,
        nombre,
        marca,
        grupo as categoria,
        stock,
        precio_unidad,
        ROUND(stock * precio_unidad, 2) as valor_inventario
    FROM productos
    WHERE stock <= :threshold
    ORDER BY stock ASC`,
		},
		{
			Name:        "search_products_by_name",
			Description: "Busca productos por nombre (insensible a mayúsculas/minúsculas), con marca, stock y precio.",
			Params: []ParamSpec{
				{Name: "term", Kind: ParamString, Description: "Texto a buscar dentro del nombre del producto"},
				{Name: "limit", Kind: ParamInt, Description: "Cantidad máxima de resultados", Default: 25},
			},
			Query: `
    SELECT
        id,
        nombre,
        marca,
        grupo as categoria,
        precio_unidad,
        stock
    FROM productos
    WHERE lower(nombre) LIKE lower('%' || :term || '%')
    ORDER BY id
    LIMIT :limit`,
		},
		{
			Name:        "inventory_rotation",
			Description: "Rotación de inventario: qué productos se venden rápido y cuáles lento.",
			Params:      dateParams(),
			Postprocess: annotateRotation,
			Query: `
    SELECT
        p.id,
        p.nombre,
        p.marca,
        COALESCE(SUM(vp.cantidad), 0) as cantidad_vendida,
        p.stock as stock_actual
    FROM productos p
    LEFT JOIN ventas_productos vp ON p.id = vp.id_producto
    LEFT JOIN ventas v ON vp.id_venta = v.id
    LEFT JOIN facturas f ON v.id_factura = f.id AND f.fecha BETWEEN :fecha_inicio AND :fecha_fin
    GROUP BY p.id, p.nombre, p.marca, p.stock
    ORDER BY cantidad_vendida DESC`,
		},
		{
			Name:        "total_inventory_value",
			Description: "Valor total del inventario (stock por precio unitario) y promedio por producto.",
			Query: `
    SELECT
        COUNT(id) as total_productos,
        SUM(stock) as total_unidades,
        ROUND(SUM(stock * precio_unidad), 2) as valor_inventario_total,
        ROUND(AVG(stock * precio_unidad), 2) as valor_promedio_por_producto
    FROM productos`,
		},
		{
			Name:        "inventory_by_category",
			Description: "Valor de inventario agrupado por categoría (grupo).",
			Query: `
    SELECT
        grupo as categoria,
        COUNT(id) as cantidad_productos,
        SUM(stock) as total_unidades,
        ROUND(SUM(stock * precio_unidad), 2) as valor_total
    FROM productos
    GROUP BY grupo
    ORDER BY valor_total DESC`,
		},

		// ---- Clientes y comportamiento ----
		{
			Name:        "most_frequent_customers",
			Description: "Clientes más frecuentes por cantidad de compras.",
			Params:      dateParamsWithTopN(10),
			Query: `
    SELECT
        c.id,
        c.nombre,
        c.apellido,
        c.email,
        COUNT(cc.id) as cantidad_compras,
        ROUND(AVG(f.importe_total), 2) as ticket_promedio,
        ROUND(SUM(f.importe_total), 2) as total_gastado
    FROM clientes c
    JOIN compras_clientes cc ON c.id = cc.id_cliente
    JOIN ventas v ON cc.id_venta = v.id
    JOIN facturas f ON v.id_factura = f.id
    WHERE f.fecha BETWEEN :fecha_inicio AND :fecha_fin
    GROUP BY c.id, c.nombre, c.apellido, c.email
    ORDER BY cantidad_compras DESC
    LIMIT :top_n`,
		},
		{
			Name:        "average_customer_ticket",
			Description: "Ticket promedio, mínimo y máximo por cliente.",
			Params:      dateParams(),
			Query: `
    SELECT
        c.nombre,
        c.apellido,
        COUNT(cc.id) as cantidad_compras,
        ROUND(MIN(f.importe_total), 2) as ticket_minimo,
        ROUND(AVG(f.importe_total), 2) as ticket_promedio,
        ROUND(MAX(f.importe_total), 2) as ticket_maximo,
        ROUND(SUM(f.importe_total), 2) as total_gastado
    FROM clientes c
    JOIN compras_clientes cc ON c.id = cc.id_cliente
    JOIN ventas v ON cc.id_venta = v.id
    JOIN facturas f ON v.id_factura = f.id
    WHERE f.fecha BETWEEN :fecha_inicio AND :fecha_fin
    GROUP BY c.id, c.nombre, c.apellido
    ORDER BY ticket_promedio DESC`,
		},
		{
			Name:        "preferred_payment_methods",
			Description: "Métodos de pago preferidos por los clientes, con clientes únicos por medio.",
			Params:      dateParams(),
			Query: `
    SELECT
        fd.medio_de_pago,
        COUNT(DISTINCT cc.id_cliente) as cantidad_clientes_unicos,
        COUNT(f.id) as cantidad_transacciones,
        ROUND(AVG(f.importe_total), 2) as ticket_promedio,
        ROUND(100.0 * COUNT(f.id) / (SELECT COUNT(id) FROM facturas WHERE fecha BETWEEN :fecha_inicio AND :fecha_fin), 2) as porcentaje
    FROM facturas f
    JOIN facturas_detalles fd ON f.id = fd.id_factura
    LEFT JOIN ventas v ON f.id = v.id_factura
    LEFT JOIN compras_clientes cc ON v.id = cc.id_venta
    WHERE f.fecha BETWEEN :fecha_inicio AND :fecha_fin
    GROUP BY fd.medio_de_pago
    ORDER BY cantidad_transacciones DESC`,
		},

		// ---- Análisis cruzados ----
		{
			Name:        "revenue_by_supplier",
			Description: "Ingresos generados por los productos de cada proveedor.",
			Params:      dateParams(),
			Query: `
    SELECT
        pr.id,
        pr.empresa,
        pr.tipo_producto,
        COUNT(DISTINCT p.id) as cantidad_productos,
        SUM(vp.cantidad) as cantidad_vendida,
        ROUND(SUM(vp.cantidad * p.precio_unidad), 2) as ingresos_totales,
        ROUND(100.0 * SUM(vp.cantidad * p.precio_unidad) /
            (SELECT SUM(vp2.cantidad * p2.precio_unidad)
             FROM ventas_productos vp2
             JOIN productos p2 ON vp2.id_producto = p2.id
             JOIN ventas v2 ON vp2.id_venta = v2.id
             JOIN facturas f2 ON v2.id_factura = f2.id
             WHERE f2.fecha BETWEEN :fecha_inicio AND :fecha_fin), 2) as porcentaje
    FROM proveedores pr
    LEFT JOIN productos p ON pr.id = p.id_proveedor
    LEFT JOIN ventas_productos vp ON p.id = vp.id_producto
    LEFT JOIN ventas v ON vp.id_venta = v.id
    LEFT JOIN facturas f ON v.id_factura = f.id AND f.fecha BETWEEN :fecha_inicio AND :fecha_fin
    GROUP BY pr.id, pr.empresa, pr.tipo_producto
    ORDER BY ingresos_totales DESC NULLS LAST`,
		},
		{
			Name:        "sales_vs_inventory_by_category",
			Description: "Comparativo de ventas contra inventario por categoría: detecta alta demanda con poco stock.",
			Params:      dateParams(),
			Postprocess: annotateDemand,
			Query: `
    SELECT
        p.grupo as categoria,
        COUNT(DISTINCT p.id) as cantidad_productos,
        SUM(p.stock) as stock_total,
        COALESCE(SUM(vp.cantidad), 0) as cantidad_vendida
    FROM productos p
    LEFT JOIN ventas_productos vp ON p.id = vp.id_producto
    LEFT JOIN ventas v ON vp.id_venta = v.id
    LEFT JOIN facturas f ON v.id_factura = f.id AND f.fecha BETWEEN :fecha_inicio AND :fecha_fin
    GROUP BY p.grupo`,
		},
	}
}
